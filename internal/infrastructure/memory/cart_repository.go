package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/trovamart/marketpay/internal/domain/cart"
)

type cartRepo struct{ v *view }

func (r *cartRepo) Save(ctx context.Context, line *cart.Line) error {
	_ = ctx
	if line == nil || line.ID == "" || line.OwnerID == "" {
		return fmt.Errorf("cart repository: line id and owner id are required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		if ov.cartLines[line.OwnerID] == nil {
			ov.cartLines[line.OwnerID] = make(map[string]*cart.Line)
		}
		ov.cartLines[line.OwnerID][line.ID] = line.Clone()
		return nil
	})
}

func (r *cartRepo) ListByOwner(ctx context.Context, ownerID string) ([]*cart.Line, error) {
	_ = ctx
	merged := make(map[string]*cart.Line)
	r.v.read(func(t *tables, ov *overlay) {
		wiped := ov != nil && ov.cartWipes[ownerID]
		if !wiped {
			for id, l := range t.carts[ownerID] {
				merged[id] = l
			}
		}
		if ov != nil {
			for id, l := range ov.cartLines[ownerID] {
				merged[id] = l
			}
		}
	})

	lines := make([]*cart.Line, 0, len(merged))
	for _, l := range merged {
		lines = append(lines, l.Clone())
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (r *cartRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	_ = ctx
	return r.v.write(func(t *tables, ov *overlay) error {
		ov.cartWipes[ownerID] = true
		delete(ov.cartLines, ownerID)
		return nil
	})
}
