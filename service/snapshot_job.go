package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hintbook/infra/metrics"
	"hintbook/snapshot"
)

// Snapshot writes a consistent copy of the book and vault, then drops
// journal segments and acknowledged outbox records it covers.
func (s *BookService) Snapshot() error {
	s.mu.Lock()
	st := &snapshot.State{
		Seq:      s.journalSeq.Current(),
		EventSeq: s.eventSeq.Current(),
		Book:     s.book.Export(),
		Vault:    s.vault.Export(),
	}
	s.mu.Unlock()

	if err := s.snapshots.Write(st); err != nil {
		return err
	}
	metrics.SnapshotsWritten.Inc()

	if err := s.journal.TruncateBefore(st.Seq); err != nil {
		s.log.Warn("journal truncation failed", zap.Error(err))
	}
	removed, err := s.outbox.TruncateAckedUpTo(st.EventSeq)
	if err != nil {
		s.log.Warn("outbox truncation failed", zap.Error(err))
	}

	s.log.Info("snapshot written",
		zap.Uint64("seq", st.Seq),
		zap.Uint64("event_seq", st.EventSeq),
		zap.Int("outbox_removed", removed),
	)
	return nil
}

// RunSnapshotJob snapshots every interval until ctx is done.
func (s *BookService) RunSnapshotJob(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Snapshot(); err != nil {
				s.log.Error("snapshot failed", zap.Error(err))
			}
		}
	}
}
