package orderbook

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AssetKind names the two assets a book trades.
type AssetKind uint8

const (
	Settlement AssetKind = iota
	Inventory
)

func (k AssetKind) String() string {
	if k == Settlement {
		return "settlement"
	}
	return "inventory"
}

// Asset moves one asset kind in and out of engine custody. A failed call
// must have no effect.
type Asset interface {
	Escrow(ctx context.Context, from common.Address, amount *uint256.Int) error
	Release(ctx context.Context, to common.Address, amount *uint256.Int) error
}

type transfer struct {
	kind    AssetKind
	escrow  bool
	account common.Address
	amount  uint256.Int
}

// transferPlan is the ordered list of asset movements of one operation.
// Escrows are queued before releases so a short balance fails the
// operation before anything leaves custody.
type transferPlan []transfer

func (p *transferPlan) escrow(kind AssetKind, from common.Address, amount uint256.Int) {
	*p = append(*p, transfer{kind: kind, escrow: true, account: from, amount: amount})
}

func (p *transferPlan) release(kind AssetKind, to common.Address, amount uint256.Int) {
	*p = append(*p, transfer{kind: kind, account: to, amount: amount})
}

func (b *Book) asset(kind AssetKind) Asset {
	if kind == Settlement {
		return b.settlement
	}
	return b.inventory
}

func (b *Book) apply(ctx context.Context, t *transfer, reverse bool) error {
	a := b.asset(t.kind)
	if t.escrow != reverse {
		return a.Escrow(ctx, t.account, &t.amount)
	}
	return a.Release(ctx, t.account, &t.amount)
}

// execute runs the plan in order. On failure every completed transfer is
// undone in reverse order and the original error is returned.
func (b *Book) execute(ctx context.Context, plan transferPlan) error {
	for i := range plan {
		t := &plan[i]
		if t.amount.IsZero() {
			continue
		}
		if err := b.apply(ctx, t, false); err != nil {
			err = errors.Wrapf(err, "%s %s of %s", t.kind, direction(t.escrow), t.amount.Dec())
			for j := i - 1; j >= 0; j-- {
				u := &plan[j]
				if u.amount.IsZero() {
					continue
				}
				if uerr := b.apply(ctx, u, true); uerr != nil {
					err = errors.WithSecondaryError(err, uerr)
				}
			}
			return err
		}
	}
	return nil
}

func direction(escrow bool) string {
	if escrow {
		return "escrow"
	}
	return "release"
}
