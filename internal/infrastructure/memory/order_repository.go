package memory

import (
	"context"
	"fmt"

	"github.com/trovamart/marketpay/internal/domain/order"
)

type orderRepo struct{ v *view }

func (r *orderRepo) Insert(ctx context.Context, o *order.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		if _, staged := ov.orders[o.ID]; staged {
			return order.ErrConflict
		}
		if _, exists := t.orders[o.ID]; exists {
			return order.ErrConflict
		}
		ov.orders[o.ID] = o.Clone()
		if o.PaymentReference != "" {
			ov.orderRefs[o.PaymentReference] = o.ID
		}
		return nil
	})
}

func (r *orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	_ = ctx
	var found *order.Order
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if o, ok := ov.orders[id]; ok {
				found = o.Clone()
				return
			}
		}
		if o, ok := t.orders[id]; ok {
			found = o.Clone()
		}
	})
	if found == nil {
		return nil, order.ErrNotFound
	}
	return found, nil
}

func (r *orderRepo) GetByReference(ctx context.Context, reference string) (*order.Order, error) {
	if reference == "" {
		return nil, order.ErrNotFound
	}
	var id string
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if staged, ok := ov.orderRefs[reference]; ok {
				id = staged
				return
			}
		}
		id = t.orderRefs[reference]
	})
	if id == "" {
		return nil, order.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *orderRepo) Update(ctx context.Context, o *order.Order) error {
	_ = ctx
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		_, staged := ov.orders[o.ID]
		_, exists := t.orders[o.ID]
		if !staged && !exists {
			return order.ErrNotFound
		}
		ov.orders[o.ID] = o.Clone()
		if o.PaymentReference != "" {
			ov.orderRefs[o.PaymentReference] = o.ID
		}
		return nil
	})
}
