package orderbook

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidOrderParams: zero price or quantity, or a cost that does
	// not fit in 256 bits.
	ErrInvalidOrderParams = errors.New("orderbook: invalid order params")

	// ErrNonExistingOrder: a referenced id (other than the anchor) is not a
	// live node of the list being operated on.
	ErrNonExistingOrder = errors.New("orderbook: non-existing order")

	// ErrInvalidPrevReference: the hint does not reach the correct position
	// within the traversal cap, or lies after it.
	ErrInvalidPrevReference = errors.New("orderbook: invalid prev reference")

	// ErrInvalidOrderUpdate: a modification to the current quantity.
	ErrInvalidOrderUpdate = errors.New("orderbook: invalid order update")

	ErrNotOrderOwner = errors.New("orderbook: not order owner")
)

// IsCallerError reports whether err is one of the engine's
// caller-correctable rejections, as opposed to an asset failure.
func IsCallerError(err error) bool {
	return errors.IsAny(err,
		ErrInvalidOrderParams,
		ErrNonExistingOrder,
		ErrInvalidPrevReference,
		ErrInvalidOrderUpdate,
		ErrNotOrderOwner,
	)
}
