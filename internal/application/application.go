package application

import "context"

// UseCase is the convention every application operation follows: one command
// in, one result out, observability handled inside Execute.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}
