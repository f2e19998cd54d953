package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrTotalsMismatch         = errors.New("order: aggregate totals diverge from line totals")
	ErrImmutable              = errors.New("order: terminal order cannot be modified")
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunding  Status = "refunding"
	StatusRefunded   Status = "refunded"
	StatusExpired    Status = "expired"
)

// Item is a per-vendor line snapshot frozen at order-creation time. Prices are
// never re-read from the live product, so the buyer pays what they saw.
type Item struct {
	ID         string
	OrderID    string
	VendorID   string
	ProductID  string
	Quantity   int
	UnitPrice  decimal.Decimal
	SubTotal   decimal.Decimal
	Shipping   decimal.Decimal
	Tax        decimal.Decimal
	ServiceFee decimal.Decimal
	Saved      decimal.Decimal
	Total      decimal.Decimal
	Coupons    []string
}

// HasCoupon reports whether the given coupon code was already applied to this item.
func (it *Item) HasCoupon(code string) bool {
	for _, c := range it.Coupons {
		if c == code {
			return true
		}
	}
	return false
}

// ApplyDiscount records a coupon discount on the line.
func (it *Item) ApplyDiscount(code string, d decimal.Decimal) {
	it.Total = it.Total.Sub(d)
	it.SubTotal = it.SubTotal.Sub(d)
	it.Saved = it.Saved.Add(d)
	it.Coupons = append(it.Coupons, code)
}

func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	clone := *it
	clone.Coupons = append([]string(nil), it.Coupons...)
	return &clone
}

// Order aggregates the buyer, the vendor set, and the monetary totals of one
// checkout. Totals are mutated only at creation and by coupon application
// before settlement; terminal orders are immutable.
type Order struct {
	ID               string
	BuyerID          string
	VendorIDs        []string
	Items            []*Item
	SubTotal         decimal.Decimal
	Shipping         decimal.Decimal
	Tax              decimal.Decimal
	ServiceFee       decimal.Decimal
	Saved            decimal.Decimal
	Total            decimal.Decimal
	InitialTotal     decimal.Decimal
	Status           Status
	FailureReason    string
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New assembles an order from frozen item snapshots. Aggregate figures are
// accumulated from the line values; shipping, tax, and service fee are
// cart-level amounts duplicated on every line, so the largest value is taken
// rather than a sum.
func New(id, buyerID string, items []*Item) (*Order, error) {
	if id == "" {
		return nil, errors.New("order: id is required")
	}
	if buyerID == "" {
		return nil, errors.New("order: buyer id is required")
	}
	if len(items) == 0 {
		return nil, errors.New("order: at least one item is required")
	}

	o := &Order{
		ID:         id,
		BuyerID:    buyerID,
		Status:     StatusProcessing,
		SubTotal:   decimal.Zero,
		Shipping:   decimal.Zero,
		Tax:        decimal.Zero,
		ServiceFee: decimal.Zero,
		Saved:      decimal.Zero,
		Total:      decimal.Zero,
	}

	seen := make(map[string]bool)
	for _, it := range items {
		it.OrderID = id
		o.Items = append(o.Items, it)
		o.SubTotal = o.SubTotal.Add(it.SubTotal)
		o.Total = o.Total.Add(it.Total)
		if it.Shipping.GreaterThan(o.Shipping) {
			o.Shipping = it.Shipping
		}
		if it.Tax.GreaterThan(o.Tax) {
			o.Tax = it.Tax
		}
		if it.ServiceFee.GreaterThan(o.ServiceFee) {
			o.ServiceFee = it.ServiceFee
		}
		if !seen[it.VendorID] {
			seen[it.VendorID] = true
			o.VendorIDs = append(o.VendorIDs, it.VendorID)
		}
	}

	o.Total = o.Total.Add(o.Shipping).Add(o.Tax).Add(o.ServiceFee)
	o.InitialTotal = o.Total

	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := o.CheckTotals(); err != nil {
		return nil, err
	}
	return o, nil
}

// CheckTotals verifies the aggregate/line consistency invariant:
// Total == sum(Item.Total) + Shipping + ServiceFee + Tax, with Saved carried
// symmetrically on the aggregate and the lines.
func (o *Order) CheckTotals() error {
	lineTotal := decimal.Zero
	lineSaved := decimal.Zero
	for _, it := range o.Items {
		lineTotal = lineTotal.Add(it.Total)
		lineSaved = lineSaved.Add(it.Saved)
	}
	want := lineTotal.Add(o.Shipping).Add(o.ServiceFee).Add(o.Tax)
	if !o.Total.Equal(want) {
		return ErrTotalsMismatch
	}
	if !o.Saved.Equal(lineSaved) {
		return ErrTotalsMismatch
	}
	if !o.InitialTotal.Equal(o.Total.Add(o.Saved)) {
		return ErrTotalsMismatch
	}
	return nil
}

// ApplyItemDiscount mirrors a line-level discount onto the aggregate totals so
// they never diverge.
func (o *Order) ApplyItemDiscount(d decimal.Decimal) {
	o.Total = o.Total.Sub(d)
	o.SubTotal = o.SubTotal.Sub(d)
	o.Saved = o.Saved.Add(d)
	o.touch()
}

// IsTerminal reports whether the order reached a status with immutable totals.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case StatusPaid, StatusFailed, StatusCancelled, StatusRefunded, StatusExpired:
		return true
	}
	return false
}

// AcceptsCoupons reports whether totals may still be discounted.
func (o *Order) AcceptsCoupons() bool {
	return o.Status == StatusInitiated || o.Status == StatusProcessing
}

// VendorItemTotal sums the line totals belonging to one vendor, the amount
// credited to that vendor's wallet at settlement.
func (o *Order) VendorItemTotal(vendorID string) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		if it.VendorID == vendorID {
			sum = sum.Add(it.Total)
		}
	}
	return sum
}

func (o *Order) touch() { o.UpdatedAt = time.Now().UTC() }

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.VendorIDs = append([]string(nil), o.VendorIDs...)
	clone.Items = make([]*Item, 0, len(o.Items))
	for _, it := range o.Items {
		clone.Items = append(clone.Items, it.Clone())
	}
	return &clone
}
