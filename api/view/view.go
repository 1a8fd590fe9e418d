// Package view holds the JSON shapes the gRPC and websocket surfaces
// share, and converts human decimal amounts to and from engine integers.
package view

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"hintbook/domain/orderbook"
	"hintbook/service"
)

var (
	ErrInvalidAmount  = errors.New("view: invalid amount")
	ErrInvalidSide    = errors.New("view: invalid side")
	ErrInvalidAsset   = errors.New("view: invalid asset")
	ErrInvalidAccount = errors.New("view: invalid account")
)

// Units converts between decimal strings and engine integers. Prices and
// settlement amounts carry PriceDecimals; inventory amounts are whole
// units.
type Units struct {
	PriceDecimals int32
}

// ParseAmount scales s by decimals. It rejects negatives, zero, excess
// precision and values that do not fit in 256 bits.
func ParseAmount(s string, decimals int32) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q", s)
	}
	if d.Sign() <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q is not positive", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q has more than %d decimals", s, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, errors.Wrapf(ErrInvalidAmount, "%q overflows", s)
	}
	return v, nil
}

func FormatAmount(v *uint256.Int, decimals int32) string {
	return decimal.NewFromBigInt(v.ToBig(), -decimals).String()
}

func (u Units) ParsePrice(s string) (*uint256.Int, error) {
	return ParseAmount(s, u.PriceDecimals)
}

func (u Units) FormatPrice(v *uint256.Int) string {
	return FormatAmount(v, u.PriceDecimals)
}

func (u Units) decimals(kind orderbook.AssetKind) int32 {
	if kind == orderbook.Settlement {
		return u.PriceDecimals
	}
	return 0
}

func (u Units) ParseAsset(kind orderbook.AssetKind, s string) (*uint256.Int, error) {
	return ParseAmount(s, u.decimals(kind))
}

func (u Units) FormatAsset(kind orderbook.AssetKind, v *uint256.Int) string {
	return FormatAmount(v, u.decimals(kind))
}

// ---- enums ----

func ParseSide(s string) (orderbook.Side, error) {
	switch strings.ToLower(s) {
	case "bid", "buy":
		return orderbook.Bid, nil
	case "ask", "sell":
		return orderbook.Ask, nil
	}
	return 0, errors.Wrapf(ErrInvalidSide, "%q", s)
}

func ParseAsset(s string) (orderbook.AssetKind, error) {
	switch strings.ToLower(s) {
	case "settlement":
		return orderbook.Settlement, nil
	case "inventory":
		return orderbook.Inventory, nil
	}
	return 0, errors.Wrapf(ErrInvalidAsset, "%q", s)
}

func ParseAccount(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidAccount, "%q", s)
	}
	return common.HexToAddress(s), nil
}

// ---- messages ----

type Order struct {
	ID       uint64 `json:"id"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity uint64 `json:"quantity"`
	Owner    string `json:"owner"`
	Next     uint64 `json:"next"`
}

func (u Units) Order(o orderbook.Order) Order {
	return Order{
		ID:       uint64(o.ID),
		Side:     o.Side.String(),
		Price:    u.FormatPrice(&o.Price),
		Quantity: o.Quantity,
		Owner:    o.Owner.Hex(),
		Next:     uint64(o.Next),
	}
}

type Event struct {
	Seq      uint64 `json:"seq"`
	Type     string `json:"type"`
	OrderID  uint64 `json:"order_id"`
	Side     string `json:"side"`
	Price    string `json:"price,omitempty"`
	Quantity uint64 `json:"quantity,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

func (u Units) Event(p service.Published) Event {
	e := Event{
		Seq:      p.Seq,
		Type:     p.Type.String(),
		OrderID:  uint64(p.ID),
		Side:     p.Side.String(),
		Quantity: p.Quantity,
	}
	if p.Type == orderbook.EventOrderCreated {
		e.Price = u.FormatPrice(&p.Price)
		e.Owner = p.Owner.Hex()
	}
	return e
}

func (u Units) Events(ps []service.Published) []Event {
	out := make([]Event, 0, len(ps))
	for _, p := range ps {
		out = append(out, u.Event(p))
	}
	return out
}
