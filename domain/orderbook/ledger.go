package orderbook

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Claimable is what fills against an account's resting orders have earned
// it and not yet been withdrawn.
type Claimable struct {
	Settlement uint256.Int
	Inventory  uint256.Int
}

func (c Claimable) IsZero() bool {
	return c.Settlement.IsZero() && c.Inventory.IsZero()
}

// ledger accumulates maker proceeds until the maker claims them.
type ledger struct {
	accounts map[common.Address]*Claimable
}

func newLedger() *ledger {
	return &ledger{accounts: make(map[common.Address]*Claimable)}
}

func (l *ledger) credit(owner common.Address, kind AssetKind, amount *uint256.Int) {
	c, ok := l.accounts[owner]
	if !ok {
		c = &Claimable{}
		l.accounts[owner] = c
	}
	if kind == Settlement {
		c.Settlement.Add(&c.Settlement, amount)
	} else {
		c.Inventory.Add(&c.Inventory, amount)
	}
}

func (l *ledger) get(owner common.Address) Claimable {
	if c, ok := l.accounts[owner]; ok {
		return *c
	}
	return Claimable{}
}

func (l *ledger) clear(owner common.Address) {
	delete(l.accounts, owner)
}

// total sums every account's claimable balance.
func (l *ledger) total() Claimable {
	var t Claimable
	for _, c := range l.accounts {
		t.Settlement.Add(&t.Settlement, &c.Settlement)
		t.Inventory.Add(&t.Inventory, &c.Inventory)
	}
	return t
}
