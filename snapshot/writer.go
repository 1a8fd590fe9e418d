package snapshot

import (
	"bufio"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

const fileName = "snapshot.bin"

type Writer struct {
	Dir string
}

func (w *Writer) Path() string {
	return filepath.Join(w.Dir, fileName)
}

// Write replaces the snapshot atomically: a crash mid-write leaves the
// previous one intact.
func (w *Writer) Write(s *State) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.Dir, fileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := gob.NewEncoder(bw).Encode(fromState(s)); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "encode snapshot")
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.Path())
}

// Load reads the snapshot in dir. A missing snapshot is not an error: it
// returns nil and recovery starts from an empty book.
func Load(dir string) (*State, error) {
	f, err := os.Open(filepath.Join(dir, fileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&s); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", f.Name())
	}
	return s.state(), nil
}
