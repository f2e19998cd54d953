package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trovamart/marketpay/internal/domain/money"
)

var (
	ErrNotFound          = errors.New("wallet: not found")
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrInvalidAmount     = errors.New("wallet: amount must be greater than zero")
)

type OwnerKind string

const (
	OwnerBuyer  OwnerKind = "buyer"
	OwnerVendor OwnerKind = "vendor"
)

// Wallet is the spendable balance of a buyer or vendor. Every mutation must
// happen inside the same atomic scope as the ledger entry recording it.
type Wallet struct {
	OwnerID   string
	OwnerKind OwnerKind
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

func New(ownerID string, kind OwnerKind) *Wallet {
	return &Wallet{
		OwnerID:   ownerID,
		OwnerKind: kind,
		Balance:   money.Zero(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Debit subtracts amount, refusing to let the balance go negative.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !money.IsPositive(amount) {
		return ErrInvalidAmount
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Credit adds amount to the balance.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if !money.IsPositive(amount) {
		return ErrInvalidAmount
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Covers reports whether the balance can settle the given amount.
func (w *Wallet) Covers(amount decimal.Decimal) bool {
	return !w.Balance.LessThan(amount)
}

func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	clone := *w
	return &clone
}
