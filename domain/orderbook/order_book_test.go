package orderbook

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// ---- insertion ----

func TestInsertIntoEmptyBook(t *testing.T) {
	env := newTestEnv()

	id, events, err := env.book.InsertBid(ctx, alice, units(30), 10, Anchor)
	require.NoError(t, err)
	require.Equal(t, OrderID(1), id)
	require.Equal(t, OrderID(1), env.book.Head(Bid))

	o := env.book.Order(Bid, id)
	assert.Equal(t, Anchor, o.Next)
	assert.Equal(t, uint64(10), o.Quantity)
	assert.Equal(t, alice, o.Owner)
	assert.True(t, o.Price.Eq(units(30)))

	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCreated, events[0].Type)
	assert.Equal(t, Bid, events[0].Side)
	assert.Equal(t, uint64(10), events[0].Quantity)
	assert.Equal(t, alice, events[0].Owner)

	assert.Equal(t, OrderID(2), env.book.OrderIDCount())
	env.requireSolvent(t)
}

func TestBetterBidBecomesHeadFromLaterHint(t *testing.T) {
	env := newTestEnv()
	env.bid(t, alice, units(30), 10, Anchor)

	id := env.bid(t, bob, units(40), 15, 1)
	require.Equal(t, OrderID(2), id)
	require.Equal(t, id, env.book.Head(Bid))
	require.Equal(t, []OrderID{2, 1}, env.ids(Bid))
}

func TestAsksKeepAscendingOrder(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 1, Anchor)
	env.ask(t, alice, units(30), 1, Anchor)
	env.ask(t, alice, units(40), 1, 2)
	env.ask(t, alice, units(60), 1, 3)

	require.Equal(t, []OrderID{2, 3, 1, 4}, env.ids(Ask))
}

func TestEqualPriceIsFIFO(t *testing.T) {
	env := newTestEnv()
	env.bid(t, alice, units(20), 1, Anchor)
	env.bid(t, bob, units(20), 1, Anchor)
	env.bid(t, charlie, units(20), 1, 1)

	require.Equal(t, []OrderID{1, 2, 3}, env.ids(Bid))
}

func TestInsertRejectsInvalidParams(t *testing.T) {
	env := newTestEnv()
	before := snapshotBalance(env.settlement, alice)

	_, _, err := env.book.InsertBid(ctx, alice, new(uint256.Int), 10, Anchor)
	require.ErrorIs(t, err, ErrInvalidOrderParams)

	_, _, err = env.book.InsertAsk(ctx, alice, units(10), 0, Anchor)
	require.ErrorIs(t, err, ErrInvalidOrderParams)

	huge := new(uint256.Int).SetAllOne()
	_, _, err = env.book.InsertBid(ctx, alice, huge, 2, Anchor)
	require.ErrorIs(t, err, ErrInvalidOrderParams)

	require.Equal(t, before, snapshotBalance(env.settlement, alice))
	require.Equal(t, OrderID(1), env.book.OrderIDCount())
	require.True(t, IsCallerError(err))
}

func TestInsertHintMustBeLiveOnSide(t *testing.T) {
	env := newTestEnv()
	env.bid(t, alice, units(30), 1, Anchor)
	env.ask(t, alice, units(100), 1, Anchor)

	_, _, err := env.book.InsertBid(ctx, alice, units(20), 1, 99)
	require.ErrorIs(t, err, ErrNonExistingOrder)

	// id 2 only exists on the ask side
	_, _, err = env.book.InsertBid(ctx, alice, units(20), 1, 2)
	require.ErrorIs(t, err, ErrNonExistingOrder)

	require.Equal(t, 1, env.book.Len(Bid))
	env.requireSolvent(t)
}

// seedTraversalBids builds the bid list 3:50 4:40 1:30 5:20 6:20 7:20 2:10.
func seedTraversalBids(t *testing.T, env *testEnv) {
	t.Helper()
	env.bid(t, alice, units(30), 1, Anchor)
	env.bid(t, alice, units(10), 1, 1)
	env.bid(t, alice, units(50), 1, Anchor)
	env.bid(t, alice, units(40), 1, 3)
	env.bid(t, alice, units(20), 1, 1)
	env.bid(t, alice, units(20), 1, 5)
	env.bid(t, alice, units(20), 1, 6)
	require.Equal(t, []OrderID{3, 4, 1, 5, 6, 7, 2}, env.ids(Bid))
}

func TestInsertTraversalCap(t *testing.T) {
	t.Run("beyond cap from anchor", func(t *testing.T) {
		env := newTestEnv()
		seedTraversalBids(t, env)
		_, _, err := env.book.InsertBid(ctx, bob, units(20), 1, Anchor)
		require.ErrorIs(t, err, ErrInvalidPrevReference)
		require.Equal(t, 7, env.book.Len(Bid))
		env.requireSolvent(t)
	})

	t.Run("cap plus one fails", func(t *testing.T) {
		env := newTestEnv()
		seedTraversalBids(t, env)
		_, _, err := env.book.InsertBid(ctx, bob, units(20), 1, 3)
		require.ErrorIs(t, err, ErrInvalidPrevReference)
	})

	t.Run("exactly cap succeeds", func(t *testing.T) {
		env := newTestEnv()
		seedTraversalBids(t, env)
		id := env.bid(t, bob, units(20), 1, 4)
		require.Equal(t, []OrderID{3, 4, 1, 5, 6, 7, id, 2}, env.ids(Bid))
	})

	t.Run("hint past position restarts at anchor", func(t *testing.T) {
		env := newTestEnv()
		seedTraversalBids(t, env)
		id := env.bid(t, bob, units(45), 1, 2)
		require.Equal(t, []OrderID{3, id, 4, 1, 5, 6, 7, 2}, env.ids(Bid))

		_, _, err := env.book.InsertBid(ctx, bob, units(15), 1, 2)
		require.ErrorIs(t, err, ErrInvalidPrevReference)
	})

	t.Run("configured cap", func(t *testing.T) {
		env := newTestEnv()
		seedTraversalBids(t, env)
		env.book.maxTraversal = 6
		id := env.bid(t, bob, units(20), 1, Anchor)
		require.Equal(t, []OrderID{3, 4, 1, 5, 6, 7, id, 2}, env.ids(Bid))
	})
}

// ---- matching ----

func TestEqualPriceAsksFillInCreationOrder(t *testing.T) {
	env := newTestEnv()
	first := env.ask(t, alice, units(50), 10, Anchor)
	second := env.ask(t, bob, units(50), 10, first)

	id, events, err := env.book.InsertBid(ctx, charlie, units(50), 10, Anchor)
	require.NoError(t, err)
	require.Equal(t, Anchor, id)
	require.Equal(t, []Event{{Type: EventOrderFilled, ID: first, Side: Ask}}, events)
	require.Equal(t, []OrderID{second}, env.ids(Ask))

	earned := env.book.Claimable(alice)
	assert.True(t, earned.Settlement.Eq(units(500)))
	assert.True(t, env.book.Claimable(bob).IsZero())
	env.requireSolvent(t)
}

func TestPartialFillOfRestingAsk(t *testing.T) {
	env := newTestEnv()
	askID := env.ask(t, alice, units(50), 10, Anchor)

	id, events, err := env.book.InsertBid(ctx, bob, units(50), 5, Anchor)
	require.NoError(t, err)
	require.Equal(t, Anchor, id)
	require.Len(t, events, 1)
	require.Equal(t, EventOrderPartiallyFilled, events[0].Type)
	require.Equal(t, askID, events[0].ID)
	require.Equal(t, uint64(5), events[0].Quantity)

	require.Equal(t, uint64(5), env.book.Order(Ask, askID).Quantity)
	require.Equal(t, 0, env.book.Len(Bid))
	env.requireSolvent(t)
}

func TestBidTakerSweepsAndRests(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 10, Anchor)
	env.ask(t, bob, units(55), 10, 1)
	settleBefore := snapshotBalance(env.settlement, charlie)
	invBefore := snapshotBalance(env.inventory, charlie)

	id, events, err := env.book.InsertBid(ctx, charlie, units(60), 25, Anchor)
	require.NoError(t, err)
	require.Equal(t, OrderID(3), id)

	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	require.Equal(t, []EventType{EventOrderFilled, EventOrderFilled, EventOrderCreated}, types)

	// 10 at 50, 10 at 55, 5 resting at 60
	assert.Equal(t, neg(units(1350)), delta(settleBefore, snapshotBalance(env.settlement, charlie)))
	assert.Equal(t, "20", delta(invBefore, snapshotBalance(env.inventory, charlie)))

	aliceEarned, bobEarned := env.book.Claimable(alice), env.book.Claimable(bob)
	assert.True(t, aliceEarned.Settlement.Eq(units(500)))
	assert.True(t, bobEarned.Settlement.Eq(units(550)))
	assert.Equal(t, 0, env.book.Len(Ask))
	assert.Equal(t, uint64(5), env.book.Order(Bid, id).Quantity)

	// filled nodes read back as zero
	assert.False(t, env.book.Order(Ask, 1).Live())
	env.requireSolvent(t)
}

func TestBidTakerPaysRestingPrice(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 10, Anchor)
	before := snapshotBalance(env.settlement, bob)

	id := env.bid(t, bob, units(60), 10, Anchor)
	require.Equal(t, Anchor, id)
	require.Equal(t, neg(units(500)), delta(before, snapshotBalance(env.settlement, bob)))
	env.requireSolvent(t)
}

func TestAskTakerPartiallyFillsSecondBid(t *testing.T) {
	env := newTestEnv()
	env.bid(t, alice, units(50), 10, Anchor)
	second := env.bid(t, bob, units(45), 10, 1)
	settleBefore := snapshotBalance(env.settlement, charlie)
	invBefore := snapshotBalance(env.inventory, charlie)

	id, events, err := env.book.InsertAsk(ctx, charlie, units(40), 15, Anchor)
	require.NoError(t, err)
	require.Equal(t, Anchor, id)
	require.Len(t, events, 2)
	assert.Equal(t, Event{Type: EventOrderFilled, ID: 1, Side: Bid}, events[0])
	assert.Equal(t, Event{Type: EventOrderPartiallyFilled, ID: second, Side: Bid, Quantity: 5}, events[1])

	assert.Equal(t, units(725).Dec(), delta(settleBefore, snapshotBalance(env.settlement, charlie)))
	assert.Equal(t, "-15", delta(invBefore, snapshotBalance(env.inventory, charlie)))
	aliceEarned, bobEarned := env.book.Claimable(alice), env.book.Claimable(bob)
	assert.Equal(t, "10", aliceEarned.Inventory.Dec())
	assert.Equal(t, "5", bobEarned.Inventory.Dec())
	env.requireSolvent(t)
}

func TestNonCrossingOrdersRest(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 10, Anchor)
	id := env.bid(t, bob, units(49), 10, Anchor)

	require.Equal(t, OrderID(2), id)
	require.Equal(t, 1, env.book.Len(Ask))
	require.Equal(t, 1, env.book.Len(Bid))
	require.True(t, env.book.Claimable(alice).IsZero())
}

func TestFullyMatchedInsertIgnoresHint(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 10, Anchor)

	id, _, err := env.book.InsertBid(ctx, bob, units(50), 10, 77)
	require.NoError(t, err)
	require.Equal(t, Anchor, id)
	require.Equal(t, OrderID(2), env.book.OrderIDCount())
}

// ---- modification ----

func TestModifyBidAmount(t *testing.T) {
	env := newTestEnv()
	id := env.bid(t, alice, units(30), 10, Anchor)
	before := snapshotBalance(env.settlement, alice)

	events, err := env.book.ModifyBidAmount(ctx, alice, id, 15)
	require.NoError(t, err)
	require.Equal(t, []Event{{Type: EventOrderModified, ID: id, Side: Bid, Quantity: 15}}, events)
	require.Equal(t, neg(units(150)), delta(before, snapshotBalance(env.settlement, alice)))

	_, err = env.book.ModifyBidAmount(ctx, alice, id, 4)
	require.NoError(t, err)
	require.Equal(t, units(180).Dec(), delta(before, snapshotBalance(env.settlement, alice)))
	require.Equal(t, uint64(4), env.book.Order(Bid, id).Quantity)
	env.requireSolvent(t)
}

func TestModifyAskKeepsPosition(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(30), 10, Anchor)
	id := env.ask(t, bob, units(30), 10, 1)
	env.ask(t, charlie, units(30), 10, 2)

	_, err := env.book.ModifyAskAmount(ctx, bob, id, 100)
	require.NoError(t, err)
	require.Equal(t, []OrderID{1, 2, 3}, env.ids(Ask))
	env.requireSolvent(t)
}

func TestModifyRejections(t *testing.T) {
	env := newTestEnv()
	id := env.bid(t, alice, units(30), 10, Anchor)

	tests := []struct {
		name   string
		side   Side
		caller common.Address
		id     OrderID
		qty    uint64
		want   error
	}{
		{"unknown id", Bid, alice, 42, 5, ErrNonExistingOrder},
		{"wrong side", Ask, alice, id, 5, ErrNonExistingOrder},
		{"not owner", Bid, bob, id, 5, ErrNotOrderOwner},
		{"same quantity", Bid, alice, id, 10, ErrInvalidOrderUpdate},
		{"zero quantity", Bid, alice, id, 0, ErrInvalidOrderParams},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.side == Bid {
				_, err = env.book.ModifyBidAmount(ctx, tc.caller, tc.id, tc.qty)
			} else {
				_, err = env.book.ModifyAskAmount(ctx, tc.caller, tc.id, tc.qty)
			}
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, uint64(10), env.book.Order(Bid, id).Quantity)
		})
	}
	env.requireSolvent(t)
}

// ---- cancellation ----

// seedCancelBids builds the bid list 3:50 4:50 1:40 5:40 6:40 2:30 7:30.
func seedCancelBids(t *testing.T, env *testEnv) {
	t.Helper()
	env.bid(t, alice, units(40), 1, Anchor)
	env.bid(t, alice, units(30), 1, 1)
	env.bid(t, alice, units(50), 1, Anchor)
	env.bid(t, alice, units(50), 1, 3)
	env.bid(t, alice, units(40), 1, 1)
	env.bid(t, alice, units(40), 1, 5)
	env.bid(t, alice, units(30), 1, 2)
	require.Equal(t, []OrderID{3, 4, 1, 5, 6, 2, 7}, env.ids(Bid))
}

func TestCancelTraversal(t *testing.T) {
	env := newTestEnv()
	seedCancelBids(t, env)

	_, err := env.book.CancelBid(ctx, alice, 3, 7)
	require.ErrorIs(t, err, ErrInvalidPrevReference)

	before := snapshotBalance(env.settlement, alice)
	events, err := env.book.CancelBid(ctx, alice, 4, 7)
	require.NoError(t, err)
	require.Equal(t, []Event{{Type: EventOrderCancelled, ID: 7, Side: Bid}}, events)
	require.Equal(t, []OrderID{3, 4, 1, 5, 6, 2}, env.ids(Bid))
	require.Equal(t, units(30).Dec(), delta(before, snapshotBalance(env.settlement, alice)))
	require.False(t, env.book.Order(Bid, 7).Live())
	env.requireSolvent(t)
}

func TestCancelHeadMovesHead(t *testing.T) {
	env := newTestEnv()
	seedCancelBids(t, env)

	_, err := env.book.CancelBid(ctx, alice, Anchor, 3)
	require.NoError(t, err)
	require.Equal(t, OrderID(4), env.book.Head(Bid))
}

func TestCancelWithPrevAfterTarget(t *testing.T) {
	env := newTestEnv()
	env.bid(t, alice, units(50), 1, Anchor)
	env.bid(t, alice, units(40), 1, 1)
	env.bid(t, alice, units(30), 1, 2)

	_, err := env.book.CancelBid(ctx, alice, 2, 1)
	require.ErrorIs(t, err, ErrInvalidPrevReference)
	require.Equal(t, 3, env.book.Len(Bid))
}

func TestCancelRejections(t *testing.T) {
	env := newTestEnv()
	id := env.ask(t, alice, units(50), 5, Anchor)

	_, err := env.book.CancelAsk(ctx, alice, 9, id)
	require.ErrorIs(t, err, ErrNonExistingOrder)

	_, err = env.book.CancelAsk(ctx, alice, Anchor, 9)
	require.ErrorIs(t, err, ErrNonExistingOrder)

	_, err = env.book.CancelBid(ctx, alice, Anchor, id)
	require.ErrorIs(t, err, ErrNonExistingOrder)

	_, err = env.book.CancelAsk(ctx, bob, Anchor, id)
	require.ErrorIs(t, err, ErrNotOrderOwner)

	_, err = env.book.CancelAsk(ctx, alice, Anchor, id)
	require.NoError(t, err)

	// cancelled ids are gone for good
	_, err = env.book.CancelAsk(ctx, alice, Anchor, id)
	require.ErrorIs(t, err, ErrNonExistingOrder)
	env.requireSolvent(t)
}

// ---- claims ----

func TestClaimIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 10, Anchor)
	env.bid(t, bob, units(50), 10, Anchor)
	before := snapshotBalance(env.settlement, alice)

	paid, err := env.book.ClaimBalances(ctx, alice)
	require.NoError(t, err)
	require.True(t, paid.Settlement.Eq(units(500)))
	require.True(t, env.book.Claimable(alice).IsZero())

	paid, err = env.book.ClaimBalances(ctx, alice)
	require.NoError(t, err)
	require.True(t, paid.IsZero())
	require.Equal(t, units(500).Dec(), delta(before, snapshotBalance(env.settlement, alice)))
	env.requireSolvent(t)
}

func TestClaimFailureKeepsLedger(t *testing.T) {
	env := newTestEnv()
	env.bid(t, alice, units(50), 10, Anchor)
	env.ask(t, bob, units(50), 10, Anchor)
	env.inventory.failRelease = true

	_, err := env.book.ClaimBalances(ctx, alice)
	require.ErrorIs(t, err, errShort)
	kept := env.book.Claimable(alice)
	require.Equal(t, "10", kept.Inventory.Dec())
	env.requireSolvent(t)
}

// ---- atomicity ----

func TestInsufficientBalanceLeavesBookUntouched(t *testing.T) {
	env := newTestEnv()
	eve := common.HexToAddress("0xe5e")
	env.ask(t, alice, units(50), 10, Anchor)

	_, _, err := env.book.InsertBid(ctx, eve, units(50), 10, Anchor)
	require.ErrorIs(t, err, errShort)
	require.False(t, IsCallerError(err))
	require.Equal(t, uint64(10), env.book.Order(Ask, 1).Quantity)
	require.Equal(t, OrderID(2), env.book.OrderIDCount())
	env.requireSolvent(t)
}

func TestFailedReleaseRollsBackEscrow(t *testing.T) {
	env := newTestEnv()
	env.ask(t, alice, units(50), 10, Anchor)
	env.inventory.failRelease = true
	before := snapshotBalance(env.settlement, bob)

	_, _, err := env.book.InsertBid(ctx, bob, units(50), 10, Anchor)
	require.Error(t, err)
	require.True(t, errors.Is(err, errShort))

	require.Equal(t, before, snapshotBalance(env.settlement, bob))
	require.Equal(t, uint64(10), env.book.Order(Ask, 1).Quantity)
	require.True(t, env.book.Claimable(alice).IsZero())
	env.requireSolvent(t)
}

// ---- state ----

func TestExportRestore(t *testing.T) {
	env := newTestEnv()
	seedCancelBids(t, env)
	env.ask(t, bob, units(60), 3, Anchor)
	env.ask(t, charlie, units(50), 1, Anchor) // fills alice's 3:50
	state := env.book.Export()

	restored := NewBook(Config{}, env.settlement, env.inventory)
	require.NoError(t, restored.Restore(state))
	require.Equal(t, state, restored.Export())
	require.Equal(t, env.book.OrderIDCount(), restored.OrderIDCount())
	require.Equal(t, env.book.Head(Bid), restored.Head(Bid))

	id, _, err := restored.InsertAsk(ctx, bob, units(70), 1, env.book.Head(Ask))
	require.NoError(t, err)
	require.Equal(t, env.book.OrderIDCount(), id)
}

func TestRestoreRejectsBrokenOrdering(t *testing.T) {
	book := NewBook(Config{}, newMemAsset(), newMemAsset())

	err := book.Restore(State{
		LastID: 2,
		Bids: []Order{
			{ID: 1, Price: *units(10), Quantity: 1, Owner: alice},
			{ID: 2, Price: *units(20), Quantity: 1, Owner: alice},
		},
	})
	require.Error(t, err)

	err = book.Restore(State{
		LastID: 2,
		Asks: []Order{
			{ID: 2, Price: *units(10), Quantity: 1, Owner: alice},
			{ID: 1, Price: *units(10), Quantity: 1, Owner: alice},
		},
	})
	require.Error(t, err)

	err = book.Restore(State{
		LastID: 1,
		Bids:   []Order{{ID: 1, Price: *units(10), Quantity: 1}},
		Asks:   []Order{{ID: 1, Price: *units(20), Quantity: 1}},
	})
	require.Error(t, err)
	require.Equal(t, OrderID(1), book.OrderIDCount())
}
