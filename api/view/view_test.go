package view

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hintbook/domain/orderbook"
	"hintbook/service"
)

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("3500.25", 18)
	require.NoError(t, err)
	assert.Equal(t, "3500250000000000000000", v.Dec())

	v, err = ParseAmount("7", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v.Uint64())

	for _, bad := range []string{"", "abc", "-1", "0", "1.5"} {
		_, err := ParseAmount(bad, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount, bad)
	}

	_, err = ParseAmount("1e80", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatAmount(t *testing.T) {
	u := Units{PriceDecimals: 18}
	p, err := u.ParsePrice("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Uint64())
	assert.Equal(t, "0.000000000000000001", u.FormatPrice(p))
	assert.Equal(t, "12", u.FormatAsset(orderbook.Inventory, uint256.NewInt(12)))
}

func TestParseEnums(t *testing.T) {
	side, err := ParseSide("ASK")
	require.NoError(t, err)
	assert.Equal(t, orderbook.Ask, side)
	_, err = ParseSide("middle")
	assert.ErrorIs(t, err, ErrInvalidSide)

	kind, err := ParseAsset("inventory")
	require.NoError(t, err)
	assert.Equal(t, orderbook.Inventory, kind)

	_, err = ParseAccount("0x123")
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestEventView(t *testing.T) {
	u := Units{PriceDecimals: 2}
	e := u.Event(service.Published{Seq: 3, Event: orderbook.Event{
		Type:     orderbook.EventOrderCreated,
		ID:       9,
		Side:     orderbook.Bid,
		Price:    *uint256.NewInt(1250),
		Quantity: 4,
	}})
	assert.Equal(t, "12.5", e.Price)
	assert.Equal(t, "OrderCreated", e.Type)
	assert.Equal(t, "bid", e.Side)

	e = u.Event(service.Published{Seq: 4, Event: orderbook.Event{Type: orderbook.EventOrderCancelled, ID: 9}})
	assert.Empty(t, e.Price)
	assert.Empty(t, e.Owner)
}
