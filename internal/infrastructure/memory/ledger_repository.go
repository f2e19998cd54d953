package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/trovamart/marketpay/internal/domain/ledger"
)

type ledgerRepo struct{ v *view }

func (r *ledgerRepo) Insert(ctx context.Context, tx *ledger.Transaction) error {
	_ = ctx
	if tx == nil || tx.Reference == "" {
		return fmt.Errorf("ledger repository: reference is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		if _, staged := ov.txns[tx.Reference]; staged {
			return ledger.ErrConflict
		}
		if _, exists := t.txns[tx.Reference]; exists {
			return ledger.ErrConflict
		}
		ov.txns[tx.Reference] = tx.Clone()
		return nil
	})
}

func (r *ledgerRepo) GetByReference(ctx context.Context, reference string) (*ledger.Transaction, error) {
	_ = ctx
	var found *ledger.Transaction
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if tx, ok := ov.txns[reference]; ok {
				found = tx.Clone()
				return
			}
		}
		if tx, ok := t.txns[reference]; ok {
			found = tx.Clone()
		}
	})
	if found == nil {
		return nil, ledger.ErrNotFound
	}
	return found, nil
}

func (r *ledgerRepo) Update(ctx context.Context, tx *ledger.Transaction) error {
	_ = ctx
	if tx == nil || tx.Reference == "" {
		return fmt.Errorf("ledger repository: reference is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		_, staged := ov.txns[tx.Reference]
		_, exists := t.txns[tx.Reference]
		if !staged && !exists {
			return ledger.ErrNotFound
		}
		ov.txns[tx.Reference] = tx.Clone()
		return nil
	})
}

func (r *ledgerRepo) ListInFlight(ctx context.Context, before time.Time) ([]*ledger.Transaction, error) {
	_ = ctx
	return r.list(func(tx *ledger.Transaction) bool {
		return !tx.IsTerminal() && tx.CreatedAt.Before(before)
	})
}

func (r *ledgerRepo) ListAwaitingCompensation(ctx context.Context) ([]*ledger.Transaction, error) {
	_ = ctx
	return r.list(func(tx *ledger.Transaction) bool { return tx.AwaitsCompensation() })
}

func (r *ledgerRepo) list(match func(*ledger.Transaction) bool) ([]*ledger.Transaction, error) {
	merged := make(map[string]*ledger.Transaction)
	r.v.read(func(t *tables, ov *overlay) {
		for ref, tx := range t.txns {
			merged[ref] = tx
		}
		if ov != nil {
			for ref, tx := range ov.txns {
				merged[ref] = tx
			}
		}
	})

	var out []*ledger.Transaction
	for _, tx := range merged {
		if match(tx) {
			out = append(out, tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
