package entry

import (
	"os"

	"github.com/cockroachdb/errors"
)

type ReplayHandler func(*Record) error

// Replay feeds fn every record with seq > after, in order, and returns the
// highest seq found. Only the last segment may end in a torn record.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	indexes, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	lastSeq = after
	for i, idx := range indexes {
		path := segmentPath(dir, idx)
		var prev uint64
		valid, _, err := scanSegment(path, func(rec *Record) error {
			if rec.Seq <= prev {
				return errors.Wrapf(ErrNonMonotonic, "%s: seq %d after %d", path, rec.Seq, prev)
			}
			prev = rec.Seq
			if rec.Seq <= lastSeq {
				return nil
			}
			lastSeq = rec.Seq
			return fn(rec)
		})
		if err != nil {
			return lastSeq, err
		}

		if i < len(indexes)-1 {
			st, err := os.Stat(path)
			if err != nil {
				return lastSeq, err
			}
			if st.Size() != valid {
				return lastSeq, errors.Wrapf(ErrCorrupt, "%s at offset %d", path, valid)
			}
		}
	}
	return lastSeq, nil
}
