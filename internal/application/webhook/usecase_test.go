package webhook

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
	"github.com/trovamart/marketpay/internal/infrastructure/memory"
)

func seedProcessingTxn(t *testing.T, s *memory.Store, reference string, purpose domledger.Purpose, kind domledger.Kind, ownerID string, amount int64) {
	t.Helper()
	txn, err := domledger.New("t-"+reference, reference, ownerID, string(domwallet.OwnerBuyer),
		kind, purpose, decimal.NewFromInt(amount))
	require.NoError(t, err)
	require.NoError(t, txn.MarkProcessing())
	if purpose == domledger.PurposePayout {
		txn.OwnerKind = string(domwallet.OwnerVendor)
		txn.MarkCompensationPending()
	}
	require.NoError(t, s.Ledger().Insert(context.Background(), txn))
}

func seedProcessingOrder(t *testing.T, s *memory.Store, reference string) *domorder.Order {
	t.Helper()
	items := []*domorder.Item{
		{
			ID: "it-1", VendorID: "v-1", ProductID: "p-1", Quantity: 1,
			UnitPrice: decimal.NewFromInt(100), SubTotal: decimal.NewFromInt(100),
			Shipping: decimal.Zero, Tax: decimal.Zero, ServiceFee: decimal.Zero,
			Saved: decimal.Zero, Total: decimal.NewFromInt(100),
		},
		{
			ID: "it-2", VendorID: "v-2", ProductID: "p-2", Quantity: 1,
			UnitPrice: decimal.NewFromInt(50), SubTotal: decimal.NewFromInt(50),
			Shipping: decimal.Zero, Tax: decimal.Zero, ServiceFee: decimal.Zero,
			Saved: decimal.Zero, Total: decimal.NewFromInt(50),
		},
	}
	ord, err := domorder.New("o-1", "b-1", items)
	require.NoError(t, err)
	ord.PaymentReference = reference
	require.NoError(t, s.Orders().Insert(context.Background(), ord))
	return ord
}

func balance(t *testing.T, s *memory.Store, ownerID string) decimal.Decimal {
	t.Helper()
	w, err := s.Wallets().Get(context.Background(), ownerID)
	require.NoError(t, err)
	return w.Balance
}

func TestTopupChargeSuccessCreditsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	seedProcessingTxn(t, store, "ref-1", domledger.PurposeWalletTopup, domledger.KindCredit, "b-1", 50)

	evt := Event{Type: EventChargeSuccess, Reference: "ref-1", AmountMinor: 5000}

	result, err := uc.Execute(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.True(t, decimal.NewFromInt(50).Equal(balance(t, store, "b-1")))

	// Redelivery is a no-op.
	result, err = uc.Execute(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)
	require.True(t, decimal.NewFromInt(50).Equal(balance(t, store, "b-1")))
}

func TestOrderChargeSuccessSettlesOrderAndVendors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	seedProcessingTxn(t, store, "ref-2", domledger.PurposeOrderCharge, domledger.KindCredit, "b-1", 150)
	seedProcessingOrder(t, store, "ref-2")

	result, err := uc.Execute(ctx, Event{Type: EventChargeSuccess, Reference: "ref-2", AmountMinor: 15000})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	ord, err := store.Orders().GetByReference(ctx, "ref-2")
	require.NoError(t, err)
	require.Equal(t, domorder.StatusPaid, ord.Status)

	require.True(t, decimal.NewFromInt(100).Equal(balance(t, store, "v-1")))
	require.True(t, decimal.NewFromInt(50).Equal(balance(t, store, "v-2")))
}

func TestOrderChargeFailedMarksOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	seedProcessingTxn(t, store, "ref-3", domledger.PurposeOrderCharge, domledger.KindCredit, "b-1", 150)
	seedProcessingOrder(t, store, "ref-3")

	result, err := uc.Execute(ctx, Event{
		Type: EventChargeFailed, Reference: "ref-3", Reason: "card declined",
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	ord, err := store.Orders().GetByReference(ctx, "ref-3")
	require.NoError(t, err)
	require.Equal(t, domorder.StatusFailed, ord.Status)
	require.Equal(t, "card declined", ord.FailureReason)

	entry, err := store.Ledger().GetByReference(ctx, "ref-3")
	require.NoError(t, err)
	require.Equal(t, domledger.StatusFailed, entry.Status)
}

func TestTransferFailureCompensatesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	// Vendor already debited 60 at initiation; 40 remains.
	w := domwallet.New("v-1", domwallet.OwnerVendor)
	require.NoError(t, w.Credit(decimal.NewFromInt(40)))
	require.NoError(t, store.Wallets().Save(ctx, w))
	seedProcessingTxn(t, store, "ref-4", domledger.PurposePayout, domledger.KindDebit, "v-1", 60)

	evt := Event{Type: EventTransferFailed, Reference: "ref-4", Reason: "account resolve failed"}

	result, err := uc.Execute(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.True(t, decimal.NewFromInt(100).Equal(balance(t, store, "v-1")))

	entry, err := store.Ledger().GetByReference(ctx, "ref-4")
	require.NoError(t, err)
	require.Equal(t, domledger.StatusFailed, entry.Status)
	require.Equal(t, domledger.CompensationApplied, entry.Compensation)
	require.False(t, entry.AwaitsCompensation())

	// A redelivered failure must not credit again.
	result, err = uc.Execute(ctx, evt)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicate, result.Outcome)
	require.True(t, decimal.NewFromInt(100).Equal(balance(t, store, "v-1")))
}

func TestTransferSuccessClearsCompensation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	seedProcessingTxn(t, store, "ref-5", domledger.PurposePayout, domledger.KindDebit, "v-1", 60)

	result, err := uc.Execute(ctx, Event{Type: EventTransferSuccess, Reference: "ref-5"})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	entry, err := store.Ledger().GetByReference(ctx, "ref-5")
	require.NoError(t, err)
	require.Equal(t, domledger.StatusSuccess, entry.Status)
	require.Equal(t, domledger.CompensationNone, entry.Compensation)
}

func TestUnknownReference(t *testing.T) {
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	_, err := uc.Execute(context.Background(), Event{Type: EventChargeSuccess, Reference: "ref-missing"})
	require.ErrorIs(t, err, ErrUnknownReference)
}

func TestAmountMismatchRejected(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	seedProcessingTxn(t, store, "ref-6", domledger.PurposeWalletTopup, domledger.KindCredit, "b-1", 50)

	_, err := uc.Execute(ctx, Event{Type: EventChargeSuccess, Reference: "ref-6", AmountMinor: 4999})
	require.ErrorIs(t, err, ErrAmountMismatch)

	// The entry stays settleable by the correct event.
	result, err := uc.Execute(ctx, Event{Type: EventChargeSuccess, Reference: "ref-6", AmountMinor: 5000})
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
}

func TestUnrecognizedEventTypeIgnored(t *testing.T) {
	store := memory.NewStore()
	uc := NewApplyUseCase(store, nil, nil)

	result, err := uc.Execute(context.Background(), Event{Type: "subscription.create", Reference: "ref-7"})
	require.NoError(t, err)
	require.Equal(t, OutcomeIgnored, result.Outcome)
}
