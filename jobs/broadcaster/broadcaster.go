package broadcaster

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hintbook/infra/metrics"
	exitwal "hintbook/infra/wal/exit"
)

// Publisher delivers one outbox payload to the event stream.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type Config struct {
	Interval time.Duration
	// MaxRetries parks a record after this many failed attempts; 0 retries
	// forever.
	MaxRetries uint32
	// Key derives the partition key from a payload. Nil sends no key.
	Key func(payload []byte) []byte
}

// Broadcaster drains the outbox: every pending record is marked SENT,
// published, then marked ACKED or FAILED.
type Broadcaster struct {
	outbox *exitwal.ExitWAL
	pub    Publisher
	cfg    Config
	log    *zap.Logger
}

func New(outbox *exitwal.ExitWAL, pub Publisher, cfg Config, log *zap.Logger) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox: outbox,
		pub:    pub,
		cfg:    cfg,
		log:    log.Named("broadcaster"),
	}
}

// ---- loop ----

// Run scans the outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", zap.Duration("interval", b.cfg.Interval))

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return
		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil {
				b.log.Error("outbox scan failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes every pending record once and returns how many were
// acknowledged. A failed publish is recorded and left for the next scan.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	acked := 0
	err := b.outbox.ScanPending(func(rec *exitwal.ExitRecord) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if b.cfg.MaxRetries > 0 && rec.Retries >= b.cfg.MaxRetries {
			return nil
		}

		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		var key []byte
		if b.cfg.Key != nil {
			key = b.cfg.Key(rec.Payload)
		}
		if err := b.pub.Publish(ctx, key, rec.Payload); err != nil {
			metrics.PublishFailures.Inc()
			b.log.Warn("publish failed",
				zap.Uint64("seq", rec.Seq),
				zap.Uint32("retries", rec.Retries+1),
				zap.Error(err),
			)
			if rec.Retries+1 == b.cfg.MaxRetries {
				b.log.Error("event parked after max retries", zap.Uint64("seq", rec.Seq))
			}
			return b.outbox.MarkFailed(rec.Seq)
		}

		metrics.EventsPublished.Inc()
		acked++
		return b.outbox.MarkAcked(rec.Seq)
	})
	return acked, err
}

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
