package account

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	Save(ctx context.Context, a *Account) error
}
