package service

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/protobuf/encoding/protowire"

	"hintbook/domain/orderbook"
)

// Published is a book event stamped with its position in the event stream.
type Published struct {
	Seq uint64
	orderbook.Event
}

// Fanout receives every published event after it is durable in the outbox.
type Fanout interface {
	Broadcast(Published)
}

const (
	fEventSeq protowire.Number = iota + 1
	fEventType
	fEventID
	fEventSide
	fEventPrice
	fEventQuantity
	fEventOwner
)

// EncodeEvent is the outbox and broker payload format.
func EncodeEvent(p Published) []byte {
	b := make([]byte, 0, 80)
	b = appendVarint(b, fEventSeq, p.Seq)
	b = appendVarint(b, fEventType, uint64(p.Type))
	b = appendVarint(b, fEventID, uint64(p.ID))
	b = appendVarint(b, fEventSide, uint64(p.Side))
	b = appendWord(b, fEventPrice, &p.Price)
	b = appendVarint(b, fEventQuantity, p.Quantity)
	if p.Owner != (common.Address{}) {
		b = protowire.AppendTag(b, fEventOwner, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Owner.Bytes())
	}
	return b
}

func DecodeEvent(b []byte) (Published, error) {
	var p Published
	err := consumeFields(b, func(num protowire.Number, v uint64, raw []byte) error {
		switch num {
		case fEventSeq:
			p.Seq = v
		case fEventType:
			p.Type = orderbook.EventType(v)
		case fEventID:
			p.ID = orderbook.OrderID(v)
		case fEventSide:
			p.Side = orderbook.Side(v)
		case fEventPrice:
			return setWord(&p.Price, raw)
		case fEventQuantity:
			p.Quantity = v
		case fEventOwner:
			if len(raw) != common.AddressLength {
				return errors.Newf("owner: %d bytes", len(raw))
			}
			p.Owner = common.BytesToAddress(raw)
		}
		return nil
	})
	if err != nil {
		return Published{}, errors.Wrap(err, "decode event")
	}
	return p, nil
}

// EventKey partitions the stream by order id so one order's events stay
// in order on the broker.
func EventKey(payload []byte) []byte {
	p, err := DecodeEvent(payload)
	if err != nil {
		return nil
	}
	return strconv.AppendUint(nil, uint64(p.ID), 10)
}
