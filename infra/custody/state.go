package custody

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hintbook/domain/orderbook"
)

// AssetState is one asset's balances and custody total.
type AssetState struct {
	Name     string
	Balances map[common.Address]uint256.Int
	Custody  uint256.Int
}

// State is a full copy of a Vault, indexed by orderbook.AssetKind.
type State struct {
	Assets [2]AssetState
}

func (v *Vault) Export() State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var s State
	for kind, l := range v.ledgers {
		as := AssetState{
			Name:     l.name,
			Balances: make(map[common.Address]uint256.Int, len(l.balances)),
			Custody:  l.custody,
		}
		for owner, b := range l.balances {
			as.Balances[owner] = *b
		}
		s.Assets[kind] = as
	}
	return s
}

func (v *Vault) Restore(s State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, kind := range []orderbook.AssetKind{orderbook.Settlement, orderbook.Inventory} {
		as := s.Assets[kind]
		l := newLedger(v.ledgers[kind].name)
		l.custody = as.Custody
		for owner, b := range as.Balances {
			if b.IsZero() {
				continue
			}
			bal := b
			l.balances[owner] = &bal
		}
		v.ledgers[kind] = l
	}
}
