package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmpty    = errors.New("cart: no lines for owner")
	ErrNotFound = errors.New("cart: line not found")
)

// Line is one product in a cart session. Pricing is snapshotted at add time;
// order items copy these values verbatim so the buyer pays what they saw.
// Shipping, tax, and service fee are cart-level figures denormalized onto each
// line.
type Line struct {
	ID         string
	OwnerID    string
	VendorID   string
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	SubTotal   decimal.Decimal
	Shipping   decimal.Decimal
	Tax        decimal.Decimal
	ServiceFee decimal.Decimal
	Total      decimal.Decimal
	CreatedAt  time.Time
}

func NewLine(id, ownerID, vendorID, productID string, quantity int, unitPrice, shipping, tax, serviceFee decimal.Decimal) (*Line, error) {
	if quantity <= 0 {
		return nil, errors.New("cart: quantity must be greater than zero")
	}
	if unitPrice.Sign() < 0 {
		return nil, errors.New("cart: unit price must be zero or greater")
	}
	sub := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return &Line{
		ID:         id,
		OwnerID:    ownerID,
		VendorID:   vendorID,
		ProductID:  productID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		SubTotal:   sub,
		Shipping:   shipping,
		Tax:        tax,
		ServiceFee: serviceFee,
		Total:      sub.Add(shipping).Add(tax).Add(serviceFee),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (l *Line) Clone() *Line {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}
