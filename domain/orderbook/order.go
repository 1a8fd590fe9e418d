package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Opposite returns the side an incoming order on s matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderID addresses a node in the arena. Ids are shared by both sides.
type OrderID uint64

// Anchor is the reserved id whose next always equals the list head.
// It doubles as the end-of-list sentinel.
const Anchor OrderID = 0

type node struct {
	price    uint256.Int
	quantity uint64
	owner    common.Address
	next     OrderID
}

// Order is a read-only copy of a node. Deleted and never-created ids
// yield the zero Order.
type Order struct {
	ID       OrderID
	Side     Side
	Price    uint256.Int
	Quantity uint64
	Owner    common.Address
	Next     OrderID
}

func (o Order) Live() bool {
	return o.Quantity > 0
}

func (n *node) view(id OrderID, side Side) Order {
	return Order{
		ID:       id,
		Side:     side,
		Price:    n.price,
		Quantity: n.quantity,
		Owner:    n.owner,
		Next:     n.next,
	}
}

// cost returns price × quantity, reporting overflow of 256 bits.
func cost(price *uint256.Int, quantity uint64) (uint256.Int, bool) {
	var out uint256.Int
	_, overflow := out.MulOverflow(price, uint256.NewInt(quantity))
	return out, overflow
}
