package coupon

import "context"

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	Save(ctx context.Context, c *Coupon) error
}
