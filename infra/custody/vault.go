package custody

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"hintbook/domain/orderbook"
)

var (
	ErrInsufficientBalance = errors.New("custody: insufficient balance")
	ErrInvalidAmount       = errors.New("custody: invalid amount")
	ErrOverflow            = errors.New("custody: balance overflow")
)

// ledger is one asset: free balances per account plus what the engine
// holds on their behalf.
type ledger struct {
	name     string
	balances map[common.Address]*uint256.Int
	custody  uint256.Int
}

func newLedger(name string) *ledger {
	return &ledger{name: name, balances: make(map[common.Address]*uint256.Int)}
}

func (l *ledger) balance(of common.Address) uint256.Int {
	if b, ok := l.balances[of]; ok {
		return *b
	}
	return uint256.Int{}
}

func (l *ledger) credit(to common.Address, amount *uint256.Int) error {
	b, ok := l.balances[to]
	if !ok {
		b = new(uint256.Int)
	}
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(b, amount); overflow {
		return errors.Wrapf(ErrOverflow, "%s credit to %s", l.name, to)
	}
	*b = sum
	l.balances[to] = b
	return nil
}

func (l *ledger) debit(from common.Address, amount *uint256.Int) error {
	b, ok := l.balances[from]
	if !ok || b.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s debit of %s from %s", l.name, amount.Dec(), from)
	}
	b.Sub(b, amount)
	if b.IsZero() {
		delete(l.balances, from)
	}
	return nil
}

// Vault holds both assets of one book. Escrow moves an account's free
// balance into custody and Release moves custody back to an account.
type Vault struct {
	mu      sync.RWMutex
	ledgers [2]*ledger
}

func New(settlement, inventory string) *Vault {
	return &Vault{ledgers: [2]*ledger{
		orderbook.Settlement: newLedger(settlement),
		orderbook.Inventory:  newLedger(inventory),
	}}
}

func (v *Vault) Deposit(kind orderbook.AssetKind, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledgers[kind].credit(to, amount)
}

func (v *Vault) Withdraw(kind orderbook.AssetKind, from common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ledgers[kind].debit(from, amount)
}

// Balance is the free, withdrawable balance of an account.
func (v *Vault) Balance(kind orderbook.AssetKind, of common.Address) uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledgers[kind].balance(of)
}

// Custody is the total the engine holds for resting orders and unclaimed
// proceeds.
func (v *Vault) Custody(kind orderbook.AssetKind) uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.ledgers[kind].custody
}

func (v *Vault) Name(kind orderbook.AssetKind) string {
	return v.ledgers[kind].name
}

// Asset returns the collaborator the book moves kind through.
func (v *Vault) Asset(kind orderbook.AssetKind) orderbook.Asset {
	return &asset{vault: v, kind: kind}
}

type asset struct {
	vault *Vault
	kind  orderbook.AssetKind
}

func (a *asset) Escrow(_ context.Context, from common.Address, amount *uint256.Int) error {
	a.vault.mu.Lock()
	defer a.vault.mu.Unlock()

	l := a.vault.ledgers[a.kind]
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.custody.Add(&l.custody, amount)
	return nil
}

func (a *asset) Release(_ context.Context, to common.Address, amount *uint256.Int) error {
	a.vault.mu.Lock()
	defer a.vault.mu.Unlock()

	l := a.vault.ledgers[a.kind]
	if l.custody.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s custody release of %s", l.name, amount.Dec())
	}
	if err := l.credit(to, amount); err != nil {
		return err
	}
	l.custody.Sub(&l.custody, amount)
	return nil
}
