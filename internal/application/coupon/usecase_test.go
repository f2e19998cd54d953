package coupon

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domcoupon "github.com/trovamart/marketpay/internal/domain/coupon"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	"github.com/trovamart/marketpay/internal/infrastructure/memory"
)

func seedOrder(t *testing.T, s *memory.Store) *domorder.Order {
	t.Helper()
	items := []*domorder.Item{
		{
			ID: "it-1", VendorID: "v-1", ProductID: "p-1", Quantity: 1,
			UnitPrice: decimal.NewFromInt(100), SubTotal: decimal.NewFromInt(100),
			Shipping: decimal.NewFromInt(10), Tax: decimal.Zero, ServiceFee: decimal.Zero,
			Saved: decimal.Zero, Total: decimal.NewFromInt(100),
		},
		{
			ID: "it-2", VendorID: "v-2", ProductID: "p-2", Quantity: 1,
			UnitPrice: decimal.NewFromInt(50), SubTotal: decimal.NewFromInt(50),
			Shipping: decimal.NewFromInt(10), Tax: decimal.Zero, ServiceFee: decimal.Zero,
			Saved: decimal.Zero, Total: decimal.NewFromInt(50),
		},
	}
	ord, err := domorder.New("o-1", "b-1", items)
	require.NoError(t, err)
	require.NoError(t, s.Orders().Insert(context.Background(), ord))
	return ord
}

func seedCoupon(t *testing.T, s *memory.Store, code, vendorID string, pct int64) {
	t.Helper()
	c, err := domcoupon.New(code, vendorID, decimal.NewFromInt(pct))
	require.NoError(t, err)
	require.NoError(t, s.Coupons().Save(context.Background(), c))
}

func TestApplyCouponDiscountsMatchingItem(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	seedOrder(t, store)
	seedCoupon(t, store, "SAVE10", "v-1", 10)

	result, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(result.Saved), "saved %s", result.Saved)
	require.True(t, decimal.NewFromInt(150).Equal(result.NewTotal), "total %s", result.NewTotal)

	ord, err := store.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	require.NoError(t, ord.CheckTotals())
	require.True(t, ord.Items[0].HasCoupon("SAVE10"))
	require.True(t, decimal.NewFromInt(90).Equal(ord.Items[0].Total))
	require.True(t, ord.InitialTotal.Equal(ord.Total.Add(ord.Saved)))
}

func seedVendorOrder(t *testing.T, s *memory.Store) *domorder.Order {
	t.Helper()
	items := []*domorder.Item{
		{
			ID: "it-1", VendorID: "v-1", ProductID: "p-1", Quantity: 1,
			UnitPrice: decimal.NewFromInt(100), SubTotal: decimal.NewFromInt(100),
			Shipping: decimal.NewFromInt(10), Tax: decimal.Zero, ServiceFee: decimal.Zero,
			Saved: decimal.Zero, Total: decimal.NewFromInt(100),
		},
		{
			ID: "it-2", VendorID: "v-1", ProductID: "p-2", Quantity: 1,
			UnitPrice: decimal.NewFromInt(50), SubTotal: decimal.NewFromInt(50),
			Shipping: decimal.NewFromInt(10), Tax: decimal.Zero, ServiceFee: decimal.Zero,
			Saved: decimal.Zero, Total: decimal.NewFromInt(50),
		},
	}
	ord, err := domorder.New("o-1", "b-1", items)
	require.NoError(t, err)
	require.NoError(t, s.Orders().Insert(context.Background(), ord))
	return ord
}

func TestApplyCouponCoversAllVendorItems(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	seedVendorOrder(t, store)
	seedCoupon(t, store, "SAVE10", "v-1", 10)

	result, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(15).Equal(result.Saved), "saved %s", result.Saved)
	require.True(t, decimal.NewFromInt(145).Equal(result.NewTotal), "total %s", result.NewTotal)

	ord, err := store.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	require.NoError(t, ord.CheckTotals())
	require.True(t, ord.Items[0].HasCoupon("SAVE10"))
	require.True(t, ord.Items[1].HasCoupon("SAVE10"), "every vendor item takes the discount")
	require.True(t, decimal.NewFromInt(90).Equal(ord.Items[0].Total))
	require.True(t, decimal.NewFromInt(45).Equal(ord.Items[1].Total))

	// No undiscounted item remains, so a second application is rejected.
	_, err = uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.ErrorIs(t, err, domcoupon.ErrAlreadyApplied)
}

func TestApplyCouponStacksOnDiscountedTotals(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	seedVendorOrder(t, store)
	seedCoupon(t, store, "SAVE10", "v-1", 10)
	seedCoupon(t, store, "SAVE20", "v-1", 20)

	_, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.NoError(t, err)

	// The second code discounts the already reduced line totals: 20% of
	// 90 and 45, not of the original prices.
	result, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE20"})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(27).Equal(result.Saved), "saved %s", result.Saved)
	require.True(t, decimal.NewFromInt(118).Equal(result.NewTotal), "total %s", result.NewTotal)

	ord, err := store.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	require.NoError(t, ord.CheckTotals())
}

func TestApplyCouponTwiceRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	seedOrder(t, store)
	seedCoupon(t, store, "SAVE10", "v-1", 10)

	_, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.NoError(t, err)

	_, err = uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.ErrorIs(t, err, domcoupon.ErrAlreadyApplied)

	ord, err := store.Orders().Get(ctx, "o-1")
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(10).Equal(ord.Saved), "second apply must not stack")
}

func TestApplyCouponNoMatchingVendor(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	seedOrder(t, store)
	seedCoupon(t, store, "OTHER", "v-99", 10)

	_, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "OTHER"})
	require.ErrorIs(t, err, domcoupon.ErrNoMatchingItem)
}

func TestApplyCouponUnknownCode(t *testing.T) {
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)
	seedOrder(t, store)

	_, err := uc.Execute(context.Background(), ApplyInput{OrderID: "o-1", Code: "NOPE"})
	require.ErrorIs(t, err, domcoupon.ErrNotFound)
}

func TestApplyCouponTerminalOrderRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	ord := seedOrder(t, store)
	require.NoError(t, ord.ChargeSucceeded())
	require.NoError(t, store.Orders().Update(ctx, ord))
	seedCoupon(t, store, "SAVE10", "v-1", 10)

	_, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", Code: "SAVE10"})
	require.ErrorIs(t, err, domorder.ErrImmutable)
}

func TestApplyCouponWrongBuyerHidden(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil)

	seedOrder(t, store)
	seedCoupon(t, store, "SAVE10", "v-1", 10)

	_, err := uc.Execute(ctx, ApplyInput{OrderID: "o-1", BuyerID: "someone-else", Code: "SAVE10"})
	require.ErrorIs(t, err, domorder.ErrNotFound)
}
