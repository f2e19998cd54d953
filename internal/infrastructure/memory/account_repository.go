package memory

import (
	"context"
	"fmt"

	"github.com/trovamart/marketpay/internal/domain/account"
)

type accountRepo struct{ v *view }

func (r *accountRepo) Get(ctx context.Context, id string) (*account.Account, error) {
	_ = ctx
	var found *account.Account
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if a, ok := ov.accounts[id]; ok {
				found = a.Clone()
				return
			}
		}
		if a, ok := t.accounts[id]; ok {
			found = a.Clone()
		}
	})
	if found == nil {
		return nil, account.ErrNotFound
	}
	return found, nil
}

func (r *accountRepo) Save(ctx context.Context, a *account.Account) error {
	_ = ctx
	if a == nil || a.ID == "" {
		return fmt.Errorf("account repository: id is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		ov.accounts[a.ID] = a.Clone()
		return nil
	})
}
