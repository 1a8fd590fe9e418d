package orderbook

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultMaxTraversal is the number of forward steps a hint may be from
// the position it resolves to.
const DefaultMaxTraversal = 4

type Config struct {
	MaxTraversal int
}

// Book is one traded pair: a bid list, an ask list, the id counter and the
// claim ledger. It is single-writer; callers serialize access.
type Book struct {
	bids *orderList
	asks *orderList

	lastID OrderID
	ledger *ledger

	settlement Asset
	inventory  Asset

	maxTraversal int
}

func NewBook(cfg Config, settlement, inventory Asset) *Book {
	if cfg.MaxTraversal <= 0 {
		cfg.MaxTraversal = DefaultMaxTraversal
	}
	return &Book{
		bids:         newOrderList(Bid),
		asks:         newOrderList(Ask),
		ledger:       newLedger(),
		settlement:   settlement,
		inventory:    inventory,
		maxTraversal: cfg.MaxTraversal,
	}
}

func (b *Book) list(side Side) *orderList {
	if side == Bid {
		return b.bids
	}
	return b.asks
}

// ---- commands ----

func (b *Book) InsertBid(ctx context.Context, caller common.Address, price *uint256.Int, quantity uint64, prevHint OrderID) (OrderID, []Event, error) {
	return b.insert(ctx, Bid, caller, price, quantity, prevHint)
}

func (b *Book) InsertAsk(ctx context.Context, caller common.Address, price *uint256.Int, quantity uint64, prevHint OrderID) (OrderID, []Event, error) {
	return b.insert(ctx, Ask, caller, price, quantity, prevHint)
}

func (b *Book) ModifyBidAmount(ctx context.Context, caller common.Address, id OrderID, quantity uint64) ([]Event, error) {
	return b.modify(ctx, Bid, caller, id, quantity)
}

func (b *Book) ModifyAskAmount(ctx context.Context, caller common.Address, id OrderID, quantity uint64) ([]Event, error) {
	return b.modify(ctx, Ask, caller, id, quantity)
}

func (b *Book) CancelBid(ctx context.Context, caller common.Address, prevID, id OrderID) ([]Event, error) {
	return b.cancel(ctx, Bid, caller, prevID, id)
}

func (b *Book) CancelAsk(ctx context.Context, caller common.Address, prevID, id OrderID) ([]Event, error) {
	return b.cancel(ctx, Ask, caller, prevID, id)
}

// ClaimBalances pays out everything the caller has earned as a maker and
// returns what was paid. Claiming a zero balance is a no-op.
func (b *Book) ClaimBalances(ctx context.Context, caller common.Address) (Claimable, error) {
	c := b.ledger.get(caller)
	if c.IsZero() {
		return Claimable{}, nil
	}

	var plan transferPlan
	plan.release(Settlement, caller, c.Settlement)
	plan.release(Inventory, caller, c.Inventory)
	if err := b.execute(ctx, plan); err != nil {
		return Claimable{}, err
	}

	b.ledger.clear(caller)
	return c, nil
}

// ---- modification ----

func (b *Book) modify(ctx context.Context, side Side, caller common.Address, id OrderID, quantity uint64) ([]Event, error) {
	l := b.list(side)
	n, ok := l.nodes[id]
	if !ok {
		return nil, ErrNonExistingOrder
	}
	if n.owner != caller {
		return nil, ErrNotOrderOwner
	}
	if quantity == n.quantity {
		return nil, ErrInvalidOrderUpdate
	}
	if quantity == 0 {
		return nil, ErrInvalidOrderParams
	}

	kind := payKind(side)
	var plan transferPlan
	if quantity > n.quantity {
		if side == Bid {
			if _, overflow := cost(&n.price, quantity); overflow {
				return nil, ErrInvalidOrderParams
			}
		}
		plan.escrow(kind, caller, b.escrowFor(side, &n.price, quantity-n.quantity))
	} else {
		plan.release(kind, caller, b.escrowFor(side, &n.price, n.quantity-quantity))
	}
	if err := b.execute(ctx, plan); err != nil {
		return nil, err
	}

	n.quantity = quantity
	return []Event{{Type: EventOrderModified, ID: id, Side: side, Quantity: quantity}}, nil
}

// ---- cancellation ----

func (b *Book) cancel(ctx context.Context, side Side, caller common.Address, prevID, id OrderID) ([]Event, error) {
	l := b.list(side)
	if _, ok := l.get(prevID); !ok {
		return nil, ErrNonExistingOrder
	}
	n, ok := l.nodes[id]
	if !ok {
		return nil, ErrNonExistingOrder
	}
	prev, err := l.findPrev(prevID, id, b.maxTraversal)
	if err != nil {
		return nil, err
	}
	if n.owner != caller {
		return nil, ErrNotOrderOwner
	}

	var plan transferPlan
	plan.release(payKind(side), caller, b.escrowFor(side, &n.price, n.quantity))
	if err := b.execute(ctx, plan); err != nil {
		return nil, err
	}

	l.unlink(prev, id)
	return []Event{{Type: EventOrderCancelled, ID: id, Side: side}}, nil
}

// payKind is the asset an order on side escrows.
func payKind(side Side) AssetKind {
	if side == Bid {
		return Settlement
	}
	return Inventory
}

// escrowFor is the custody backing quantity units of an order at price.
// Callers guarantee the bid product fits.
func (b *Book) escrowFor(side Side, price *uint256.Int, quantity uint64) uint256.Int {
	if side == Ask {
		return *uint256.NewInt(quantity)
	}
	c, _ := cost(price, quantity)
	return c
}

// ---- queries ----

// Head returns the first live id of a side, or Anchor when it is empty.
func (b *Book) Head(side Side) OrderID {
	return b.list(side).head()
}

// Order returns the node stored under id on side. The anchor reports only
// its next pointer; unknown ids report the zero Order.
func (b *Book) Order(side Side, id OrderID) Order {
	n, ok := b.list(side).get(id)
	if !ok {
		return Order{}
	}
	return n.view(id, side)
}

// OrderIDCount is the id the next created order will receive.
func (b *Book) OrderIDCount() OrderID {
	return b.lastID + 1
}

func (b *Book) Claimable(owner common.Address) Claimable {
	return b.ledger.get(owner)
}

// Len returns the number of live orders on a side.
func (b *Book) Len(side Side) int {
	return b.list(side).size()
}

// Walk visits a side from best to worst until fn returns false.
func (b *Book) Walk(side Side, fn func(Order) bool) {
	b.list(side).walk(func(id OrderID, n *node) bool {
		return fn(n.view(id, side))
	})
}

// Liabilities is what custody must hold for the book to be solvent: live
// bid and ask escrow plus every unclaimed balance.
func (b *Book) Liabilities() Claimable {
	out := b.ledger.total()
	b.bids.walk(func(_ OrderID, n *node) bool {
		c, _ := cost(&n.price, n.quantity)
		out.Settlement.Add(&out.Settlement, &c)
		return true
	})
	b.asks.walk(func(_ OrderID, n *node) bool {
		out.Inventory.Add(&out.Inventory, uint256.NewInt(n.quantity))
		return true
	})
	return out
}
