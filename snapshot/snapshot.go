package snapshot

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hintbook/domain/orderbook"
	"hintbook/infra/custody"
)

// Snapshot is the on-disk form. Amounts are stored as 32-byte big-endian
// words so the encoding does not depend on uint256's marshalers.
type Snapshot struct {
	Seq      uint64
	EventSeq uint64
	Created  time.Time

	LastOrderID uint64
	Bids        []OrderEntry
	Asks        []OrderEntry
	Claims      []ClaimEntry
	Assets      [2]AssetEntry
}

type OrderEntry struct {
	ID       uint64
	Price    [32]byte
	Quantity uint64
	Owner    [20]byte
}

type ClaimEntry struct {
	Owner      [20]byte
	Settlement [32]byte
	Inventory  [32]byte
}

type AssetEntry struct {
	Name     string
	Custody  [32]byte
	Balances []BalanceEntry
}

type BalanceEntry struct {
	Owner  [20]byte
	Amount [32]byte
}

// State is what a snapshot captures, in domain types.
type State struct {
	Seq      uint64
	EventSeq uint64
	Book     orderbook.State
	Vault    custody.State
}

func fromState(s *State) *Snapshot {
	out := &Snapshot{
		Seq:         s.Seq,
		EventSeq:    s.EventSeq,
		Created:     time.Now().UTC(),
		LastOrderID: uint64(s.Book.LastID),
		Bids:        fromOrders(s.Book.Bids),
		Asks:        fromOrders(s.Book.Asks),
		Claims:      make([]ClaimEntry, 0, len(s.Book.Claims)),
	}
	for owner, c := range s.Book.Claims {
		out.Claims = append(out.Claims, ClaimEntry{
			Owner:      owner,
			Settlement: c.Settlement.Bytes32(),
			Inventory:  c.Inventory.Bytes32(),
		})
	}
	for kind, as := range s.Vault.Assets {
		e := AssetEntry{
			Name:     as.Name,
			Custody:  as.Custody.Bytes32(),
			Balances: make([]BalanceEntry, 0, len(as.Balances)),
		}
		for owner, b := range as.Balances {
			e.Balances = append(e.Balances, BalanceEntry{Owner: owner, Amount: b.Bytes32()})
		}
		out.Assets[kind] = e
	}
	return out
}

func fromOrders(orders []orderbook.Order) []OrderEntry {
	out := make([]OrderEntry, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderEntry{
			ID:       uint64(o.ID),
			Price:    o.Price.Bytes32(),
			Quantity: o.Quantity,
			Owner:    o.Owner,
		})
	}
	return out
}

func (s *Snapshot) state() *State {
	st := &State{
		Seq:      s.Seq,
		EventSeq: s.EventSeq,
		Book: orderbook.State{
			LastID: orderbook.OrderID(s.LastOrderID),
			Bids:   toOrders(orderbook.Bid, s.Bids),
			Asks:   toOrders(orderbook.Ask, s.Asks),
			Claims: make(map[common.Address]orderbook.Claimable, len(s.Claims)),
		},
	}
	for _, c := range s.Claims {
		var cl orderbook.Claimable
		cl.Settlement.SetBytes32(c.Settlement[:])
		cl.Inventory.SetBytes32(c.Inventory[:])
		st.Book.Claims[c.Owner] = cl
	}
	for kind, e := range s.Assets {
		as := custody.AssetState{
			Name:     e.Name,
			Balances: make(map[common.Address]uint256.Int, len(e.Balances)),
		}
		as.Custody.SetBytes32(e.Custody[:])
		for _, b := range e.Balances {
			var amt uint256.Int
			amt.SetBytes32(b.Amount[:])
			as.Balances[b.Owner] = amt
		}
		st.Vault.Assets[kind] = as
	}
	return st
}

func toOrders(side orderbook.Side, entries []OrderEntry) []orderbook.Order {
	out := make([]orderbook.Order, 0, len(entries))
	for _, e := range entries {
		o := orderbook.Order{
			ID:       orderbook.OrderID(e.ID),
			Side:     side,
			Quantity: e.Quantity,
			Owner:    e.Owner,
		}
		o.Price.SetBytes32(e.Price[:])
		out = append(out, o)
	}
	return out
}
