package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type EventType uint8

const (
	EventOrderCreated EventType = iota + 1
	EventOrderModified
	EventOrderCancelled
	EventOrderFilled
	EventOrderPartiallyFilled
)

func (t EventType) String() string {
	switch t {
	case EventOrderCreated:
		return "OrderCreated"
	case EventOrderModified:
		return "OrderModified"
	case EventOrderCancelled:
		return "OrderCancelled"
	case EventOrderFilled:
		return "OrderFilled"
	case EventOrderPartiallyFilled:
		return "OrderPartiallyFilled"
	default:
		return "Unknown"
	}
}

// Event is one observable state change. Quantity carries the created
// quantity, the new quantity, or the remaining quantity depending on Type.
// Price and Owner are only set on OrderCreated.
type Event struct {
	Type     EventType
	ID       OrderID
	Side     Side
	Price    uint256.Int
	Quantity uint64
	Owner    common.Address
}

func created(id OrderID, side Side, n *node) Event {
	return Event{
		Type:     EventOrderCreated,
		ID:       id,
		Side:     side,
		Price:    n.price,
		Quantity: n.quantity,
		Owner:    n.owner,
	}
}
