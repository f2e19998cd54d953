package wallet

import "context"

type Repository interface {
	Get(ctx context.Context, ownerID string) (*Wallet, error)
	Save(ctx context.Context, w *Wallet) error
}
