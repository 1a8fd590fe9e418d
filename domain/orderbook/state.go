package orderbook

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

// State is a complete copy of a Book, lists in head-to-tail order.
type State struct {
	LastID OrderID
	Bids   []Order
	Asks   []Order
	Claims map[common.Address]Claimable
}

func (b *Book) Export() State {
	s := State{
		LastID: b.lastID,
		Claims: make(map[common.Address]Claimable, len(b.ledger.accounts)),
	}
	b.Walk(Bid, func(o Order) bool {
		s.Bids = append(s.Bids, o)
		return true
	})
	b.Walk(Ask, func(o Order) bool {
		s.Asks = append(s.Asks, o)
		return true
	})
	for owner, c := range b.ledger.accounts {
		s.Claims[owner] = *c
	}
	return s
}

// Restore replaces the book's contents with s. The lists are relinked in
// the given order after checking the ordering invariant.
func (b *Book) Restore(s State) error {
	bids, err := restoreList(Bid, s.Bids, s.LastID)
	if err != nil {
		return err
	}
	asks, err := restoreList(Ask, s.Asks, s.LastID)
	if err != nil {
		return err
	}

	for id := range bids.nodes {
		if _, dup := asks.nodes[id]; dup {
			return errors.Newf("restore: order %d on both sides", id)
		}
	}

	b.bids, b.asks = bids, asks
	b.lastID = s.LastID
	b.ledger = newLedger()
	for owner, c := range s.Claims {
		b.ledger.credit(owner, Settlement, &c.Settlement)
		b.ledger.credit(owner, Inventory, &c.Inventory)
	}
	return nil
}

func restoreList(side Side, orders []Order, lastID OrderID) (*orderList, error) {
	l := newOrderList(side)
	prev := Anchor
	for i := range orders {
		o := &orders[i]
		if o.ID == Anchor || o.ID > lastID || o.Quantity == 0 || o.Price.IsZero() {
			return nil, errors.Newf("restore %s: invalid order %d", side, o.ID)
		}
		if _, dup := l.nodes[o.ID]; dup {
			return nil, errors.Newf("restore %s: duplicate order %d", side, o.ID)
		}
		if prev != Anchor {
			p := l.nodes[prev]
			if l.worse(&p.price, &o.Price) {
				return nil, errors.Newf("restore %s: order %d out of price order", side, o.ID)
			}
			if p.price.Eq(&o.Price) && o.ID < prev {
				return nil, errors.Newf("restore %s: order %d out of time order", side, o.ID)
			}
		}
		l.link(prev, o.ID, &node{price: o.Price, quantity: o.Quantity, owner: o.Owner})
		prev = o.ID
	}
	return l, nil
}
