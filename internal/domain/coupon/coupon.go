package coupon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("coupon: not found")
	ErrAlreadyApplied = errors.New("coupon: already applied to item")
	ErrNoMatchingItem = errors.New("coupon: no order item for this vendor")
	ErrInvalidPercent = errors.New("coupon: discount must be between 0 and 100")
)

// Coupon grants a percentage discount on the issuing vendor's order items.
type Coupon struct {
	Code      string
	VendorID  string
	Discount  decimal.Decimal // percent, 0 < Discount <= 100
	CreatedAt time.Time
}

func New(code, vendorID string, discount decimal.Decimal) (*Coupon, error) {
	if code == "" || vendorID == "" {
		return nil, errors.New("coupon: code and vendor id are required")
	}
	if discount.Sign() <= 0 || discount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidPercent
	}
	return &Coupon{
		Code:      code,
		VendorID:  vendorID,
		Discount:  discount,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (c *Coupon) Clone() *Coupon {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}
