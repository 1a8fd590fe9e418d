package orderbook

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// fill is one planned trade against a resting order.
type fill struct {
	id        OrderID
	owner     common.Address
	price     uint256.Int
	amount    uint64
	remaining uint64
}

// planFills walks l from its head and returns the trades an incoming order
// limited at limit for quantity units would make. Nothing is mutated.
func (l *orderList) planFills(limit *uint256.Int, quantity uint64) ([]fill, uint64) {
	var fills []fill
	l.walk(func(id OrderID, n *node) bool {
		if quantity == 0 || !l.crossed(&n.price, limit) {
			return false
		}
		amount := min(quantity, n.quantity)
		quantity -= amount
		fills = append(fills, fill{
			id:        id,
			owner:     n.owner,
			price:     n.price,
			amount:    amount,
			remaining: n.quantity - amount,
		})
		return true
	})
	return fills, quantity
}

// insert escrows the full order, matches it against the opposite side at
// resting prices, and rests any remainder after the position prevHint
// resolves to. Everything is validated and planned before the first asset
// moves, so a failure leaves the book untouched.
func (b *Book) insert(ctx context.Context, side Side, caller common.Address, price *uint256.Int, quantity uint64, prevHint OrderID) (OrderID, []Event, error) {
	if price.IsZero() || quantity == 0 {
		return 0, nil, ErrInvalidOrderParams
	}
	if side == Bid {
		if _, overflow := cost(price, quantity); overflow {
			return 0, nil, ErrInvalidOrderParams
		}
	}

	own, opp := b.list(side), b.list(side.Opposite())

	fills, remaining := opp.planFills(price, quantity)

	var prev OrderID
	if remaining > 0 {
		var err error
		if prev, err = own.findInsertPrev(prevHint, price, b.maxTraversal); err != nil {
			return 0, nil, err
		}
	}

	var plan transferPlan
	plan.escrow(payKind(side), caller, b.escrowFor(side, price, quantity))
	for i := range fills {
		f := &fills[i]
		proceeds, _ := cost(&f.price, f.amount)
		if side == Bid {
			plan.release(Inventory, caller, *uint256.NewInt(f.amount))
			// the taker's limit covered more than the resting price
			improvement, _ := cost(price, f.amount)
			improvement.Sub(&improvement, &proceeds)
			plan.release(Settlement, caller, improvement)
		} else {
			plan.release(Settlement, caller, proceeds)
		}
	}
	if err := b.execute(ctx, plan); err != nil {
		return 0, nil, err
	}

	events := make([]Event, 0, len(fills)+1)
	for i := range fills {
		f := &fills[i]
		if side == Bid {
			proceeds, _ := cost(&f.price, f.amount)
			b.ledger.credit(f.owner, Settlement, &proceeds)
		} else {
			b.ledger.credit(f.owner, Inventory, uint256.NewInt(f.amount))
		}

		if f.remaining == 0 {
			// fills always consume from the head
			opp.unlink(Anchor, f.id)
			events = append(events, Event{Type: EventOrderFilled, ID: f.id, Side: opp.side})
			continue
		}
		opp.nodes[f.id].quantity = f.remaining
		events = append(events, Event{
			Type:     EventOrderPartiallyFilled,
			ID:       f.id,
			Side:     opp.side,
			Quantity: f.remaining,
		})
	}

	if remaining == 0 {
		return 0, events, nil
	}

	b.lastID++
	id := b.lastID
	n := &node{price: *price, quantity: remaining, owner: caller}
	own.link(prev, id, n)
	events = append(events, created(id, side, n))
	return id, events, nil
}
