package orderbook

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice   = common.HexToAddress("0xa11ce")
	bob     = common.HexToAddress("0xb0b")
	charlie = common.HexToAddress("0xc4a5")
	dave    = common.HexToAddress("0xda7e")

	errShort = errors.New("short balance")
)

// one is a whole settlement unit with 18 decimals.
var one = uint256.NewInt(1_000_000_000_000_000_000)

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(one, uint256.NewInt(n))
}

// memAsset is a minimal custody double: account balances plus what the
// engine holds.
type memAsset struct {
	balances map[common.Address]*uint256.Int
	custody  uint256.Int

	failRelease bool
}

func newMemAsset() *memAsset {
	return &memAsset{balances: make(map[common.Address]*uint256.Int)}
}

func (a *memAsset) fund(to common.Address, amount *uint256.Int) {
	b := a.balance(to)
	b.Add(b, amount)
}

func (a *memAsset) balance(of common.Address) *uint256.Int {
	b, ok := a.balances[of]
	if !ok {
		b = new(uint256.Int)
		a.balances[of] = b
	}
	return b
}

func (a *memAsset) Escrow(_ context.Context, from common.Address, amount *uint256.Int) error {
	b := a.balance(from)
	if b.Lt(amount) {
		return errShort
	}
	b.Sub(b, amount)
	a.custody.Add(&a.custody, amount)
	return nil
}

func (a *memAsset) Release(_ context.Context, to common.Address, amount *uint256.Int) error {
	if a.failRelease || a.custody.Lt(amount) {
		return errShort
	}
	a.custody.Sub(&a.custody, amount)
	b := a.balance(to)
	b.Add(b, amount)
	return nil
}

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	require.TestingT
	Helper()
}

type testEnv struct {
	book       *Book
	settlement *memAsset
	inventory  *memAsset
}

func newTestEnv() *testEnv {
	env := &testEnv{settlement: newMemAsset(), inventory: newMemAsset()}
	for _, u := range []common.Address{alice, bob, charlie, dave} {
		env.settlement.fund(u, units(10_000_000))
		env.inventory.fund(u, uint256.NewInt(250_000_000))
	}
	env.book = NewBook(Config{}, env.settlement, env.inventory)
	return env
}

func (e *testEnv) bid(t tb, who common.Address, price *uint256.Int, qty uint64, hint OrderID) OrderID {
	t.Helper()
	id, _, err := e.book.InsertBid(context.Background(), who, price, qty, hint)
	require.NoError(t, err)
	return id
}

func (e *testEnv) ask(t tb, who common.Address, price *uint256.Int, qty uint64, hint OrderID) OrderID {
	t.Helper()
	id, _, err := e.book.InsertAsk(context.Background(), who, price, qty, hint)
	require.NoError(t, err)
	return id
}

// ids returns a side from head to tail.
func (e *testEnv) ids(side Side) []OrderID {
	var out []OrderID
	e.book.Walk(side, func(o Order) bool {
		out = append(out, o.ID)
		return true
	})
	return out
}

// requireSolvent checks custody holds exactly what the book owes.
func (e *testEnv) requireSolvent(t tb) {
	t.Helper()
	owed := e.book.Liabilities()
	require.Equal(t, owed.Settlement.Dec(), e.settlement.custody.Dec(), "settlement custody")
	require.Equal(t, owed.Inventory.Dec(), e.inventory.custody.Dec(), "inventory custody")
}

func snapshotBalance(a *memAsset, who common.Address) uint256.Int {
	return *a.balance(who)
}

// delta returns after - before as a signed decimal string.
func delta(before, after uint256.Int) string {
	if after.Lt(&before) {
		d := new(uint256.Int).Sub(&before, &after)
		return "-" + d.Dec()
	}
	d := new(uint256.Int).Sub(&after, &before)
	return d.Dec()
}

func neg(v *uint256.Int) string {
	if v.IsZero() {
		return "0"
	}
	return "-" + v.Dec()
}

func mul(price *uint256.Int, qty uint64) *uint256.Int {
	return new(uint256.Int).Mul(price, uint256.NewInt(qty))
}
