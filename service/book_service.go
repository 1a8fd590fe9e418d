package service

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"hintbook/domain/orderbook"
	"hintbook/infra/custody"
	"hintbook/infra/metrics"
	"hintbook/infra/sequence"
	entrywal "hintbook/infra/wal/entry"
	exitwal "hintbook/infra/wal/exit"
	"hintbook/snapshot"
)

var (
	// ErrUnavailable: an earlier outbox failure left events unrecorded, or
	// the journal holds a torn record; the service refuses writes until a
	// restart repairs them.
	ErrUnavailable = errors.New("service: unavailable")

	ErrCustodyMismatch = errors.New("service: custody does not match book liabilities")
)

type Config struct {
	Book        orderbook.Config
	SnapshotDir string
}

/*
BookService is the ONLY write entry point.

Every command is journaled, executed against the book and vault under one
lock, and its events are written to the outbox before the call returns.
*/
type BookService struct {
	mu    sync.Mutex
	fault error

	book    *orderbook.Book
	vault   *custody.Vault
	journal *entrywal.WAL
	outbox  *exitwal.ExitWAL

	journalSeq *sequence.Sequencer
	eventSeq   *sequence.Sequencer

	snapshots *snapshot.Writer
	fanout    Fanout
	log       *zap.Logger
}

func New(
	cfg Config,
	vault *custody.Vault,
	journal *entrywal.WAL,
	outbox *exitwal.ExitWAL,
	log *zap.Logger,
) *BookService {
	return &BookService{
		book:       orderbook.NewBook(cfg.Book, vault.Asset(orderbook.Settlement), vault.Asset(orderbook.Inventory)),
		vault:      vault,
		journal:    journal,
		outbox:     outbox,
		journalSeq: sequence.New(0),
		eventSeq:   sequence.New(0),
		snapshots:  &snapshot.Writer{Dir: cfg.SnapshotDir},
		log:        log.Named("service"),
	}
}

// SetFanout attaches a live subscriber feed. Call before serving traffic.
func (s *BookService) SetFanout(f Fanout) {
	s.mu.Lock()
	s.fanout = f
	s.mu.Unlock()
}

// Result is what a successful command produced.
type Result struct {
	OrderID orderbook.OrderID
	Claimed orderbook.Claimable
	Events  []Published
}

// ---- commands ----

func (s *BookService) Deposit(ctx context.Context, kind orderbook.AssetKind, to common.Address, amount *uint256.Int) error {
	_, err := s.submit(ctx, &Command{Kind: CmdDeposit, Caller: to, Asset: kind, Amount: *amount})
	return err
}

func (s *BookService) Withdraw(ctx context.Context, kind orderbook.AssetKind, from common.Address, amount *uint256.Int) error {
	_, err := s.submit(ctx, &Command{Kind: CmdWithdraw, Caller: from, Asset: kind, Amount: *amount})
	return err
}

func (s *BookService) Insert(ctx context.Context, side orderbook.Side, caller common.Address, price *uint256.Int, quantity uint64, prevHint orderbook.OrderID) (Result, error) {
	return s.submit(ctx, &Command{
		Kind:     CmdInsert,
		Caller:   caller,
		Side:     side,
		Price:    *price,
		Quantity: quantity,
		Hint:     prevHint,
	})
}

func (s *BookService) InsertBid(ctx context.Context, caller common.Address, price *uint256.Int, quantity uint64, prevHint orderbook.OrderID) (Result, error) {
	return s.Insert(ctx, orderbook.Bid, caller, price, quantity, prevHint)
}

func (s *BookService) InsertAsk(ctx context.Context, caller common.Address, price *uint256.Int, quantity uint64, prevHint orderbook.OrderID) (Result, error) {
	return s.Insert(ctx, orderbook.Ask, caller, price, quantity, prevHint)
}

func (s *BookService) Modify(ctx context.Context, side orderbook.Side, caller common.Address, id orderbook.OrderID, quantity uint64) (Result, error) {
	return s.submit(ctx, &Command{Kind: CmdModify, Caller: caller, Side: side, ID: id, Quantity: quantity})
}

func (s *BookService) Cancel(ctx context.Context, side orderbook.Side, caller common.Address, prevID, id orderbook.OrderID) (Result, error) {
	return s.submit(ctx, &Command{Kind: CmdCancel, Caller: caller, Side: side, ID: id, Hint: prevID})
}

func (s *BookService) ModifyBid(ctx context.Context, caller common.Address, id orderbook.OrderID, quantity uint64) (Result, error) {
	return s.Modify(ctx, orderbook.Bid, caller, id, quantity)
}

func (s *BookService) ModifyAsk(ctx context.Context, caller common.Address, id orderbook.OrderID, quantity uint64) (Result, error) {
	return s.Modify(ctx, orderbook.Ask, caller, id, quantity)
}

func (s *BookService) CancelBid(ctx context.Context, caller common.Address, prevID, id orderbook.OrderID) (Result, error) {
	return s.Cancel(ctx, orderbook.Bid, caller, prevID, id)
}

func (s *BookService) CancelAsk(ctx context.Context, caller common.Address, prevID, id orderbook.OrderID) (Result, error) {
	return s.Cancel(ctx, orderbook.Ask, caller, prevID, id)
}

func (s *BookService) Claim(ctx context.Context, caller common.Address) (Result, error) {
	return s.submit(ctx, &Command{Kind: CmdClaim, Caller: caller})
}

// submit journals cmd, runs it and records its events.
func (s *BookService) submit(ctx context.Context, cmd *Command) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fault != nil {
		return Result{}, errors.WithSecondaryError(ErrUnavailable, s.fault)
	}

	start := time.Now()
	name := cmd.Kind.String()
	defer func() {
		metrics.CommandLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	seq := s.journalSeq.Next()
	if err := s.journal.Append(entrywal.NewRecord(entrywal.RecordType(cmd.Kind), seq, cmd.marshal())); err != nil {
		metrics.CommandsTotal.WithLabelValues(name, "failed").Inc()
		if errors.Is(err, entrywal.ErrBroken) {
			s.fault = err
			s.log.Error("journal torn; refusing writes until restart", zap.Uint64("seq", seq), zap.Error(err))
			return Result{}, errors.WithSecondaryError(ErrUnavailable, err)
		}
		// nothing was written, so the seq is reused
		s.journalSeq.Reset(seq - 1)
		s.log.Error("journal append failed", zap.Uint64("seq", seq), zap.Error(err))
		return Result{}, errors.Wrap(err, "journal")
	}

	res, events, err := s.apply(ctx, cmd)
	if err != nil {
		if Rejected(err) {
			metrics.CommandsTotal.WithLabelValues(name, "rejected").Inc()
			s.log.Debug("command rejected",
				zap.String("command", name),
				zap.Uint64("seq", seq),
				zap.Stringer("caller", cmd.Caller),
				zap.Error(err),
			)
		} else {
			metrics.CommandsTotal.WithLabelValues(name, "failed").Inc()
			s.log.Warn("command failed",
				zap.String("command", name),
				zap.Uint64("seq", seq),
				zap.Error(err),
			)
		}
		return Result{}, err
	}

	res.Events, err = s.record(events, 0)
	if err != nil {
		s.fault = err
		metrics.CommandsTotal.WithLabelValues(name, "failed").Inc()
		s.log.Error("outbox write failed; refusing writes until restart",
			zap.Uint64("seq", seq),
			zap.Error(err),
		)
		return Result{}, errors.WithSecondaryError(ErrUnavailable, err)
	}

	metrics.CommandsTotal.WithLabelValues(name, "ok").Inc()
	s.observeDepth()
	return res, nil
}

// apply executes cmd against the book and vault. It is shared by live
// traffic and journal replay.
func (s *BookService) apply(ctx context.Context, cmd *Command) (Result, []orderbook.Event, error) {
	var (
		res    Result
		events []orderbook.Event
		err    error
	)
	switch cmd.Kind {
	case CmdDeposit:
		err = s.vault.Deposit(cmd.Asset, cmd.Caller, &cmd.Amount)
	case CmdWithdraw:
		err = s.vault.Withdraw(cmd.Asset, cmd.Caller, &cmd.Amount)
	case CmdInsert:
		if cmd.Side == orderbook.Bid {
			res.OrderID, events, err = s.book.InsertBid(ctx, cmd.Caller, &cmd.Price, cmd.Quantity, cmd.Hint)
		} else {
			res.OrderID, events, err = s.book.InsertAsk(ctx, cmd.Caller, &cmd.Price, cmd.Quantity, cmd.Hint)
		}
	case CmdModify:
		if cmd.Side == orderbook.Bid {
			events, err = s.book.ModifyBidAmount(ctx, cmd.Caller, cmd.ID, cmd.Quantity)
		} else {
			events, err = s.book.ModifyAskAmount(ctx, cmd.Caller, cmd.ID, cmd.Quantity)
		}
	case CmdCancel:
		if cmd.Side == orderbook.Bid {
			events, err = s.book.CancelBid(ctx, cmd.Caller, cmd.Hint, cmd.ID)
		} else {
			events, err = s.book.CancelAsk(ctx, cmd.Caller, cmd.Hint, cmd.ID)
		}
	case CmdClaim:
		res.Claimed, err = s.book.ClaimBalances(ctx, cmd.Caller)
	default:
		err = errors.Newf("unknown command kind %d", cmd.Kind)
	}
	return res, events, err
}

// record stamps events with sequence numbers and writes those above
// skipUpTo to the outbox in one batch, then fans them out.
func (s *BookService) record(events []orderbook.Event, skipUpTo uint64) ([]Published, error) {
	if len(events) == 0 {
		return nil, nil
	}
	out := make([]Published, 0, len(events))
	recs := make([]*exitwal.ExitRecord, 0, len(events))
	for _, e := range events {
		p := Published{Seq: s.eventSeq.Next(), Event: e}
		out = append(out, p)
		if p.Seq > skipUpTo {
			recs = append(recs, &exitwal.ExitRecord{Seq: p.Seq, Payload: EncodeEvent(p)})
		}
		metrics.EventsTotal.WithLabelValues(e.Type.String()).Inc()
	}
	if err := s.outbox.PutNew(recs...); err != nil {
		return nil, err
	}
	if s.fanout != nil {
		for _, p := range out {
			s.fanout.Broadcast(p)
		}
	}
	return out, nil
}

func (s *BookService) observeDepth() {
	metrics.BookDepth.WithLabelValues(orderbook.Bid.String()).Set(float64(s.book.Len(orderbook.Bid)))
	metrics.BookDepth.WithLabelValues(orderbook.Ask.String()).Set(float64(s.book.Len(orderbook.Ask)))
}

// Rejected reports whether err is a caller-correctable refusal rather than
// an infrastructure failure.
func Rejected(err error) bool {
	return orderbook.IsCallerError(err) || errors.IsAny(err,
		custody.ErrInsufficientBalance,
		custody.ErrInvalidAmount,
		custody.ErrOverflow,
	)
}

// ---- queries ----

func (s *BookService) Order(side orderbook.Side, id orderbook.OrderID) orderbook.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Order(side, id)
}

func (s *BookService) Head(side orderbook.Side) orderbook.OrderID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Head(side)
}

func (s *BookService) NextOrderID() orderbook.OrderID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.OrderIDCount()
}

func (s *BookService) Claimable(owner common.Address) orderbook.Claimable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Claimable(owner)
}

func (s *BookService) Balance(kind orderbook.AssetKind, owner common.Address) uint256.Int {
	return s.vault.Balance(kind, owner)
}

// Depth returns up to limit orders of a side, best first. limit <= 0
// returns the whole side.
func (s *BookService) Depth(side orderbook.Side, limit int) []orderbook.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []orderbook.Order
	s.book.Walk(side, func(o orderbook.Order) bool {
		out = append(out, o)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// Reconcile checks that the vault holds exactly what the book owes.
func (s *BookService) Reconcile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcile()
}

func (s *BookService) reconcile() error {
	owed := s.book.Liabilities()
	settlement := s.vault.Custody(orderbook.Settlement)
	inventory := s.vault.Custody(orderbook.Inventory)
	if !owed.Settlement.Eq(&settlement) {
		return errors.Wrapf(ErrCustodyMismatch, "settlement: owed %s, held %s", owed.Settlement.Dec(), settlement.Dec())
	}
	if !owed.Inventory.Eq(&inventory) {
		return errors.Wrapf(ErrCustodyMismatch, "inventory: owed %s, held %s", owed.Inventory.Dec(), inventory.Dec())
	}
	return nil
}
