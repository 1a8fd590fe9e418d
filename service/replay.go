package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"hintbook/infra/metrics"
	entrywal "hintbook/infra/wal/entry"
	"hintbook/snapshot"
)

/*
Recover rebuilds in-memory state: the latest snapshot, then every journal
record after it.

IMPORTANT:
- This MUST run before accepting traffic.
- Commands that failed live fail again here and are skipped.
- Events are regenerated with the same sequence numbers; only those past
  the outbox's newest record are written, which repairs a crash between
  journal append and outbox write.
*/
func (s *BookService) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := snapshot.Load(s.snapshots.Dir)
	if err != nil {
		return err
	}
	var after, eventSeq uint64
	if st != nil {
		if err := s.book.Restore(st.Book); err != nil {
			return errors.Wrap(err, "restore book")
		}
		s.vault.Restore(st.Vault)
		after, eventSeq = st.Seq, st.EventSeq
	}
	s.eventSeq.Reset(eventSeq)

	outboxLast, err := s.outbox.LastSeq()
	if err != nil {
		return errors.Wrap(err, "outbox last seq")
	}

	s.journalSeq.Reset(after)
	replayed, skipped := 0, 0
	lastSeq, err := entrywal.Replay(s.journal.Dir(), after, func(rec *entrywal.Record) error {
		s.journalSeq.Observe(rec.Seq)
		cmd, err := unmarshalCommand(CommandKind(rec.Type), rec.Data)
		if err != nil {
			return errors.Wrapf(err, "journal seq %d", rec.Seq)
		}
		replayed++
		metrics.ReplayedRecords.Inc()

		_, events, err := s.apply(ctx, cmd)
		if err != nil {
			skipped++
			s.log.Debug("replayed command rejected",
				zap.Uint64("seq", rec.Seq),
				zap.Stringer("command", cmd.Kind),
				zap.Error(err),
			)
			return nil
		}
		_, err = s.record(events, outboxLast)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "journal replay")
	}
	s.journalSeq.Observe(lastSeq)

	if err := s.reconcile(); err != nil {
		return err
	}
	s.observeDepth()

	s.log.Info("recovered",
		zap.Uint64("snapshot_seq", after),
		zap.Uint64("journal_seq", lastSeq),
		zap.Uint64("event_seq", s.eventSeq.Current()),
		zap.Int("replayed", replayed),
		zap.Int("skipped", skipped),
	)
	return nil
}
