package cart

import "context"

type Repository interface {
	Save(ctx context.Context, line *Line) error
	ListByOwner(ctx context.Context, ownerID string) ([]*Line, error)
	DeleteByOwner(ctx context.Context, ownerID string) error
}
