package service

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"google.golang.org/protobuf/encoding/protowire"

	"hintbook/domain/orderbook"
)

// CommandKind doubles as the journal record type.
type CommandKind uint8

const (
	CmdDeposit CommandKind = iota + 1
	CmdWithdraw
	CmdInsert
	CmdModify
	CmdCancel
	CmdClaim
)

func (k CommandKind) String() string {
	switch k {
	case CmdDeposit:
		return "deposit"
	case CmdWithdraw:
		return "withdraw"
	case CmdInsert:
		return "insert"
	case CmdModify:
		return "modify"
	case CmdCancel:
		return "cancel"
	case CmdClaim:
		return "claim"
	default:
		return "unknown"
	}
}

// Command is one journaled write. Fields unused by a kind stay zero.
type Command struct {
	Kind     CommandKind
	Caller   common.Address
	Side     orderbook.Side
	Asset    orderbook.AssetKind
	Price    uint256.Int
	Amount   uint256.Int
	Quantity uint64
	ID       orderbook.OrderID
	// Hint is the insert prevHint or the cancel prevId.
	Hint orderbook.OrderID
}

// ---- wire format ----

const (
	fCaller protowire.Number = iota + 1
	fSide
	fAsset
	fPrice
	fAmount
	fQuantity
	fID
	fHint
)

func (c *Command) marshal() []byte {
	b := make([]byte, 0, 96)
	b = protowire.AppendTag(b, fCaller, protowire.BytesType)
	b = protowire.AppendBytes(b, c.Caller.Bytes())
	b = appendVarint(b, fSide, uint64(c.Side))
	b = appendVarint(b, fAsset, uint64(c.Asset))
	b = appendWord(b, fPrice, &c.Price)
	b = appendWord(b, fAmount, &c.Amount)
	b = appendVarint(b, fQuantity, c.Quantity)
	b = appendVarint(b, fID, uint64(c.ID))
	b = appendVarint(b, fHint, uint64(c.Hint))
	return b
}

func unmarshalCommand(kind CommandKind, b []byte) (*Command, error) {
	c := &Command{Kind: kind}
	err := consumeFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case fCaller:
			if len(raw) != common.AddressLength {
				return errors.Newf("caller: %d bytes", len(raw))
			}
			c.Caller = common.BytesToAddress(raw)
		case fSide:
			c.Side = orderbook.Side(v)
		case fAsset:
			c.Asset = orderbook.AssetKind(v)
		case fPrice:
			return setWord(&c.Price, raw)
		case fAmount:
			return setWord(&c.Amount, raw)
		case fQuantity:
			c.Quantity = v
		case fID:
			c.ID = orderbook.OrderID(v)
		case fHint:
			c.Hint = orderbook.OrderID(v)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s command", kind)
	}
	return c, nil
}

// ---- helpers shared with the event codec ----

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// appendWord writes a 256-bit value as minimal big-endian bytes.
func appendWord(b []byte, num protowire.Number, v *uint256.Int) []byte {
	if v.IsZero() {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v.Bytes())
}

func setWord(dst *uint256.Int, raw []byte) error {
	if len(raw) > 32 {
		return errors.Newf("word of %d bytes", len(raw))
	}
	dst.SetBytes(raw)
	return nil
}

// consumeFields walks a message calling fn with the varint value or the
// raw bytes of each known-typed field. Unknown wire types are skipped.
func consumeFields(b []byte, fn func(num protowire.Number, v uint64, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, v, nil); err != nil {
				return err
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			if err := fn(num, 0, raw); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
