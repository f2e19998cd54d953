package memory

import (
	"context"
	"fmt"

	"github.com/trovamart/marketpay/internal/domain/coupon"
)

type couponRepo struct{ v *view }

func (r *couponRepo) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	_ = ctx
	var found *coupon.Coupon
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if c, ok := ov.coupons[code]; ok {
				found = c.Clone()
				return
			}
		}
		if c, ok := t.coupons[code]; ok {
			found = c.Clone()
		}
	})
	if found == nil {
		return nil, coupon.ErrNotFound
	}
	return found, nil
}

func (r *couponRepo) Save(ctx context.Context, c *coupon.Coupon) error {
	_ = ctx
	if c == nil || c.Code == "" {
		return fmt.Errorf("coupon repository: code is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		ov.coupons[c.Code] = c.Clone()
		return nil
	})
}
