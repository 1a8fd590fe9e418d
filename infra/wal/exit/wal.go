package exit

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var ErrInvalidRecord = errors.New("outbox: invalid record")

// ---- state ----

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ---- record ----

// ExitRecord is one event awaiting or past publication, keyed by its
// event sequence number.
type ExitRecord struct {
	Seq         uint64
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeader = 1 + 4 + 8

// [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r *ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (*ExitRecord, error) {
	if len(b) < recordHeader {
		return nil, errors.Wrapf(ErrInvalidRecord, "seq %d: %d bytes", seq, len(b))
	}
	return &ExitRecord{
		Seq:         seq,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

// ---- outbox ----

type Options struct {
	// FS overrides the filesystem; tests pass vfs.NewMem().
	FS vfs.FS
}

type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string, opts Options) (*ExitWAL, error) {
	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}
	db, err := pebble.Open(dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// PutNew stores freshly produced events in one synced batch.
func (w *ExitWAL) PutNew(recs ...*ExitRecord) error {
	if len(recs) == 0 {
		return nil
	}
	b := w.db.NewBatch()
	defer b.Close()
	for _, r := range recs {
		r.State, r.Retries, r.LastAttempt = StateNew, 0, 0
		if err := b.Set(keyFor(r.Seq), encodeRecord(r), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (w *ExitWAL) MarkSent(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) { r.State = StateSent })
}

func (w *ExitWAL) MarkAcked(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) { r.State = StateAcked })
}

func (w *ExitWAL) MarkFailed(seq uint64) error {
	return w.update(seq, func(r *ExitRecord) {
		r.State = StateFailed
		r.Retries++
	})
}

func (w *ExitWAL) update(seq uint64, fn func(*ExitRecord)) error {
	r, err := w.Get(seq)
	if err != nil {
		return err
	}
	fn(r)
	r.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(seq), encodeRecord(r), pebble.Sync)
}

func (w *ExitWAL) Get(seq uint64) (*ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(seq))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

func (w *ExitWAL) Delete(seq uint64) error {
	return w.db.Delete(keyFor(seq), pebble.Sync)
}

// ---- scan ----

// ScanByState visits records in the given state in seq order.
func (w *ExitWAL) ScanByState(state ExitState, fn func(*ExitRecord) error) error {
	return w.scan(func(r *ExitRecord) error {
		if r.State != state {
			return nil
		}
		return fn(r)
	})
}

// ScanPending visits records that still need publishing: NEW, FAILED, and
// SENT ones whose acknowledgement was lost to a crash.
func (w *ExitWAL) ScanPending(fn func(*ExitRecord) error) error {
	return w.scan(func(r *ExitRecord) error {
		if r.State == StateAcked {
			return nil
		}
		return fn(r)
	})
}

func (w *ExitWAL) scan(fn func(*ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		r, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LastSeq is the highest event seq ever stored, or 0.
func (w *ExitWAL) LastSeq() (uint64, error) {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// TruncateAckedUpTo deletes ACKED records with seq <= seq. The newest
// record is always kept so LastSeq survives a restart.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) (int, error) {
	last, err := w.LastSeq()
	if err != nil {
		return 0, err
	}

	b := w.db.NewBatch()
	defer b.Close()
	n := 0
	err = w.ScanByState(StateAcked, func(r *ExitRecord) error {
		if r.Seq > seq || r.Seq == last {
			return nil
		}
		n++
		return b.Delete(keyFor(r.Seq), nil)
	})
	if err != nil || n == 0 {
		return 0, err
	}
	return n, b.Commit(pebble.Sync)
}

// ---- keys ----

const (
	keyPrefix = "event/"
	keyUpper  = "event/~"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%d", &seq); err != nil {
		return 0, errors.Wrapf(ErrInvalidRecord, "key %q", b)
	}
	return seq, nil
}
