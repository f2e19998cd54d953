package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newPayoutDebit(t *testing.T) *Transaction {
	t.Helper()
	txn, err := New("t-1", "ref-1", "v-1", "vendor", KindDebit, PurposePayout, decimal.NewFromInt(60))
	require.NoError(t, err)
	return txn
}

func TestStatusMovesForwardOnly(t *testing.T) {
	txn := newPayoutDebit(t)
	require.Equal(t, StatusInitiated, txn.Status)

	require.NoError(t, txn.MarkProcessing())
	require.NoError(t, txn.MarkSuccess())
	require.True(t, txn.IsTerminal())

	require.ErrorIs(t, txn.MarkFailed("late failure"), ErrInvalidStateTransition)
	require.ErrorIs(t, txn.MarkProcessing(), ErrInvalidStateTransition)
	require.Equal(t, StatusSuccess, txn.Status)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("", "ref", "v-1", "vendor", KindDebit, PurposePayout, decimal.NewFromInt(1))
	require.Error(t, err)
	_, err = New("t-1", "ref", "", "vendor", KindDebit, PurposePayout, decimal.NewFromInt(1))
	require.Error(t, err)
	_, err = New("t-1", "ref", "v-1", "vendor", KindDebit, PurposePayout, decimal.Zero)
	require.Error(t, err)
}

func TestCompensationLifecycle(t *testing.T) {
	txn := newPayoutDebit(t)
	require.NoError(t, txn.MarkProcessing())
	txn.MarkCompensationPending()
	require.False(t, txn.AwaitsCompensation(), "in-flight debit owes nothing yet")

	require.NoError(t, txn.MarkFailed("transfer bounced"))
	require.True(t, txn.AwaitsCompensation())

	txn.MarkCompensationApplied()
	require.False(t, txn.AwaitsCompensation())
}

func TestSettledTransferClearsCompensation(t *testing.T) {
	txn := newPayoutDebit(t)
	require.NoError(t, txn.MarkProcessing())
	txn.MarkCompensationPending()

	require.NoError(t, txn.MarkSuccess())
	txn.ClearCompensation()
	require.Equal(t, CompensationNone, txn.Compensation)
	require.False(t, txn.AwaitsCompensation())
}
