package entry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const segmentGlob = "segment-*.wal"

// segmentFile is the part of *os.File a segment writes through.
type segmentFile interface {
	Write(b []byte) (int, error)
	Sync() error
	Truncate(size int64) error
	Close() error
}

type segment struct {
	index  int
	file   segmentFile
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{index: index, file: f, offset: st.Size()}, nil
}

// append writes b as one record and, when sync is set, makes it durable.
// On failure the file is cut back to where the record started; if that
// cut fails too the segment holds a torn record and ErrBroken is returned.
func (s *segment) append(b []byte, sync bool) error {
	start := s.offset
	n, err := s.file.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	if err == nil && sync {
		err = s.file.Sync()
	}
	if err == nil {
		s.offset += int64(n)
		return nil
	}
	if terr := s.file.Truncate(start); terr != nil {
		return errors.WithSecondaryError(errors.Wrapf(ErrBroken, "%v", err), terr)
	}
	return err
}

func (s *segment) close() error {
	return s.file.Close()
}

// listSegments returns segment indexes in ascending order.
func listSegments(dir string) ([]int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "segment-"), ".wal")
		idx, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// scanSegment reads every intact record of a segment. It returns the
// length of the intact prefix and the highest seq in it; a torn or
// corrupt tail ends the scan without error.
func scanSegment(path string, fn func(*Record) error) (valid int64, maxSeq uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, n, err := readRecord(r)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF || err == ErrCorrupt {
				return valid, maxSeq, nil
			}
			return valid, maxSeq, err
		}
		if fn != nil {
			if err := fn(rec); err != nil {
				return valid, maxSeq, err
			}
		}
		valid += n
		maxSeq = max(maxSeq, rec.Seq)
	}
}
