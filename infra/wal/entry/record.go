package entry

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrCorrupt       = errors.New("journal: crc mismatch")
	ErrNonMonotonic  = errors.New("journal: non-monotonic seq")
	ErrRecordTooLong = errors.New("journal: record too long")
)

// RecordType is opaque to the journal; callers assign meaning.
type RecordType uint8

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4

	maxPayload = 16 << 20
)

func (r *Record) encode() ([]byte, error) {
	if len(r.Data) > maxPayload {
		return nil, errors.Wrapf(ErrRecordTooLong, "seq %d: %d bytes", r.Seq, len(r.Data))
	}
	n := uint32(len(r.Data))
	buf := make([]byte, headerSize+n+crcSize)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], n)
	copy(buf[headerSize:], r.Data)

	binary.BigEndian.PutUint32(buf[headerSize+n:], crc32.ChecksumIEEE(buf[:headerSize+n]))
	return buf, nil
}

// readRecord returns io.EOF at a clean end and io.ErrUnexpectedEOF for a
// torn trailing record.
func readRecord(r io.Reader) (*Record, int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, 0, err
	}

	n := binary.BigEndian.Uint32(header[17:21])
	if n > maxPayload {
		return nil, 0, ErrCorrupt
	}

	body := make([]byte, n+crcSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}

	payload := body[:n]
	sum := crc32.NewIEEE()
	_, _ = sum.Write(header)
	_, _ = sum.Write(payload)
	if sum.Sum32() != binary.BigEndian.Uint32(body[n:]) {
		return nil, 0, ErrCorrupt
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, int64(headerSize + n + crcSize), nil
}
