package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func twoVendorItems() []*Item {
	return []*Item{
		{
			ID: "it-1", VendorID: "v-1", ProductID: "p-1", Quantity: 2,
			UnitPrice: d(50), SubTotal: d(100), Shipping: d(10), Tax: d(0), ServiceFee: d(5),
			Saved: decimal.Zero, Total: d(100),
		},
		{
			ID: "it-2", VendorID: "v-2", ProductID: "p-2", Quantity: 1,
			UnitPrice: d(50), SubTotal: d(50), Shipping: d(10), Tax: d(0), ServiceFee: d(5),
			Saved: decimal.Zero, Total: d(50),
		},
	}
}

func TestNewOrderTakesCartLevelChargesOnce(t *testing.T) {
	// Shipping and service fee are duplicated on every line; the aggregate
	// must carry them once, not summed per line.
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)

	require.True(t, d(150).Equal(o.SubTotal), "subtotal %s", o.SubTotal)
	require.True(t, d(10).Equal(o.Shipping))
	require.True(t, d(5).Equal(o.ServiceFee))
	require.True(t, d(165).Equal(o.Total), "total %s", o.Total)
	require.True(t, o.InitialTotal.Equal(o.Total))
	require.Equal(t, []string{"v-1", "v-2"}, o.VendorIDs)
	require.Equal(t, StatusProcessing, o.Status)
	require.NoError(t, o.CheckTotals())
}

func TestCheckTotalsDetectsDrift(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)

	o.Total = o.Total.Add(d(1))
	require.ErrorIs(t, o.CheckTotals(), ErrTotalsMismatch)
}

func TestApplyItemDiscountKeepsInvariant(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)

	discount := d(10)
	o.Items[0].ApplyDiscount("SAVE10", discount)
	o.ApplyItemDiscount(discount)

	require.NoError(t, o.CheckTotals())
	require.True(t, d(155).Equal(o.Total))
	require.True(t, discount.Equal(o.Saved))
	require.True(t, o.InitialTotal.Equal(o.Total.Add(o.Saved)))
	require.True(t, o.Items[0].HasCoupon("SAVE10"))
}

func TestVendorItemTotal(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)

	require.True(t, d(100).Equal(o.VendorItemTotal("v-1")))
	require.True(t, d(50).Equal(o.VendorItemTotal("v-2")))
	require.True(t, decimal.Zero.Equal(o.VendorItemTotal("v-unknown")))
}

func TestChargeTransitions(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, o.Status)

	require.NoError(t, o.ChargeSucceeded())
	require.Equal(t, StatusPaid, o.Status)

	// Re-signalling the event that produced the state is a no-op.
	require.NoError(t, o.ChargeSucceeded())
	require.Equal(t, StatusPaid, o.Status)

	// Paid never fails afterwards.
	require.ErrorIs(t, o.ChargeFailed("late decline"), ErrInvalidStateTransition)
	require.Equal(t, StatusPaid, o.Status)
}

func TestChargeFailedRecordsReason(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)

	require.NoError(t, o.ChargeFailed("card declined"))
	require.Equal(t, StatusFailed, o.Status)
	require.Equal(t, "card declined", o.FailureReason)
	require.True(t, o.IsTerminal())

	require.ErrorIs(t, o.ChargeSucceeded(), ErrInvalidStateTransition)
}

func TestRefundFlow(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)
	require.NoError(t, o.ChargeSucceeded())

	require.NoError(t, o.RefundRequested())
	require.Equal(t, StatusRefunding, o.Status)
	require.NoError(t, o.Refunded())
	require.Equal(t, StatusRefunded, o.Status)
	require.True(t, o.IsTerminal())
	require.False(t, o.AcceptsCoupons())
}

func TestCancelAndExpireOnlyBeforeSettlement(t *testing.T) {
	o, err := New("o-1", "b-1", twoVendorItems())
	require.NoError(t, err)
	require.NoError(t, o.Cancelled("buyer aborted"))
	require.Equal(t, StatusCancelled, o.Status)

	o2, err := New("o-2", "b-1", twoVendorItems())
	require.NoError(t, err)
	require.NoError(t, o2.Expired())
	require.Equal(t, StatusExpired, o2.Status)

	paid, err := New("o-3", "b-1", twoVendorItems())
	require.NoError(t, err)
	require.NoError(t, paid.ChargeSucceeded())
	require.ErrorIs(t, paid.Cancelled("too late"), ErrInvalidStateTransition)
	require.ErrorIs(t, paid.Expired(), ErrInvalidStateTransition)
}
