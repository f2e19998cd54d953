package ledger

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, t *Transaction) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) error
	// ListInFlight returns non-terminal entries created before the cutoff,
	// the candidates for the reconciliation sweep.
	ListInFlight(ctx context.Context, before time.Time) ([]*Transaction, error)
	// ListAwaitingCompensation returns failed payout debits whose reversing
	// credit has not been applied.
	ListAwaitingCompensation(ctx context.Context) ([]*Transaction, error)
}
