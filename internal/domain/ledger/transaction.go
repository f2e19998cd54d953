package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("ledger: transaction not found")
	ErrConflict               = errors.New("ledger: reference already recorded")
	ErrInvalidStateTransition = errors.New("ledger: invalid status transition")
)

type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

type Purpose string

const (
	PurposeOrderCharge Purpose = "order_charge"
	PurposeWalletTopup Purpose = "wallet_topup"
	PurposePayout      Purpose = "payout"
)

type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Compensation makes the "funds in flight, reversal may be owed" window an
// explicit queryable state instead of free text, so a reconciliation sweep can
// find wallets awaiting compensation after gateway outages.
type Compensation string

const (
	CompensationNone    Compensation = "none"
	CompensationPending Compensation = "pending"
	CompensationApplied Compensation = "applied"
)

// Transaction is one ledger entry per financial event. The gateway reference
// is the idempotency key the webhook reconciler transacts on.
type Transaction struct {
	ID           string
	Reference    string
	OwnerID      string
	OwnerKind    string
	Kind         Kind
	Purpose      Purpose
	Amount       decimal.Decimal
	Status       Status
	Compensation Compensation
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func New(id, reference, ownerID, ownerKind string, kind Kind, purpose Purpose, amount decimal.Decimal) (*Transaction, error) {
	if id == "" || reference == "" {
		return nil, errors.New("ledger: id and reference are required")
	}
	if ownerID == "" {
		return nil, errors.New("ledger: owner id is required")
	}
	if amount.Sign() <= 0 {
		return nil, errors.New("ledger: amount must be greater than zero")
	}
	now := time.Now().UTC()
	return &Transaction{
		ID:           id,
		Reference:    reference,
		OwnerID:      ownerID,
		OwnerKind:    ownerKind,
		Kind:         kind,
		Purpose:      purpose,
		Amount:       amount,
		Status:       StatusInitiated,
		Compensation: CompensationNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsTerminal reports whether the entry reached success or failed. Events for a
// terminal reference are no-ops.
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// MarkProcessing moves initiated → processing; forward transitions only.
func (t *Transaction) MarkProcessing() error {
	if t.IsTerminal() {
		return ErrInvalidStateTransition
	}
	t.Status = StatusProcessing
	t.touch()
	return nil
}

// MarkSuccess settles the entry.
func (t *Transaction) MarkSuccess() error {
	if t.IsTerminal() {
		return ErrInvalidStateTransition
	}
	t.Status = StatusSuccess
	t.touch()
	return nil
}

// MarkFailed records the failure reason.
func (t *Transaction) MarkFailed(reason string) error {
	if t.IsTerminal() {
		return ErrInvalidStateTransition
	}
	t.Status = StatusFailed
	t.Reason = reason
	t.touch()
	return nil
}

// MarkCompensationPending flags that a reversal of the optimistic debit is owed.
func (t *Transaction) MarkCompensationPending() {
	t.Compensation = CompensationPending
	t.touch()
}

// ClearCompensation records that the in-flight debit settled and no reversal
// is owed.
func (t *Transaction) ClearCompensation() {
	t.Compensation = CompensationNone
	t.touch()
}

// MarkCompensationApplied records the reversing credit. Applying twice is the
// caller's bug; the webhook path guards it with the terminal-status no-op.
func (t *Transaction) MarkCompensationApplied() {
	t.Compensation = CompensationApplied
	t.touch()
}

// AwaitsCompensation reports whether a failed optimistic debit has not been
// credited back yet.
func (t *Transaction) AwaitsCompensation() bool {
	return t.Purpose == PurposePayout && t.Status == StatusFailed && t.Compensation != CompensationApplied
}

func (t *Transaction) touch() { t.UpdatedAt = time.Now().UTC() }

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
