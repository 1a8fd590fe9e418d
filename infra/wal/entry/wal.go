package entry

import (
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBroken: a failed append could not be rolled back, so the open segment
// ends in a torn record. The journal refuses further appends.
var ErrBroken = errors.New("journal: torn segment")

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncWrites fsyncs every append before it returns.
	SyncWrites bool
}

// WAL is the append-only command journal. Records are written before the
// command they describe runs, so replaying the journal over the last
// snapshot reproduces the state.
type WAL struct {
	mu      sync.Mutex
	dir     string
	segSize int64
	sync    bool
	current *segment
	broken  error
}

// Open resumes the highest existing segment, cutting off a torn tail left
// by a crash mid-append.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 64 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	indexes, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(indexes) > 0 {
		index = indexes[len(indexes)-1]
		path := segmentPath(cfg.Dir, index)
		valid, _, err := scanSegment(path, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", path)
		}
		if err := os.Truncate(path, valid); err != nil {
			return nil, errors.Wrapf(err, "repair %s", path)
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}
	return &WAL{
		dir:     cfg.Dir,
		segSize: cfg.SegmentSize,
		sync:    cfg.SyncWrites,
		current: seg,
	}, nil
}

// Append writes r. A nil error means r is in the journal (and synced when
// SyncWrites is set); any other result means it is not, unless the error
// is ErrBroken. A full segment is rotated before the write, so a rotation
// failure never follows a written record.
func (w *WAL) Append(r *Record) error {
	buf, err := r.encode()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken != nil {
		return w.broken
	}
	if w.current.offset >= w.segSize {
		if err := w.rotate(); err != nil {
			return errors.Wrapf(err, "rotate before seq %d", r.Seq)
		}
	}
	if err := w.current.append(buf, w.sync); err != nil {
		err = errors.Wrapf(err, "append seq %d", r.Seq)
		if errors.Is(err, ErrBroken) {
			w.broken = err
		}
		return err
	}
	return nil
}

// rotate opens the next segment before closing the current one, so a
// failure leaves the journal writable on the old segment.
func (w *WAL) rotate() error {
	seg, err := openSegment(w.dir, w.current.index+1)
	if err != nil {
		return err
	}
	if err := w.current.close(); err != nil {
		_ = seg.close()
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore removes closed segments whose records all have seq <= seq.
// The open segment is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	current := w.current.index
	w.mu.Unlock()

	indexes, err := listSegments(w.dir)
	if err != nil {
		return err
	}
	for _, idx := range indexes {
		if idx >= current {
			break
		}
		path := segmentPath(w.dir, idx)
		_, maxSeq, err := scanSegment(path, nil)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return errors.Wrapf(err, "remove %s", path)
			}
		}
	}
	return nil
}

func (w *WAL) Dir() string {
	return w.dir
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.close()
}
