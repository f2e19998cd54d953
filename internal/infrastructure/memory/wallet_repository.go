package memory

import (
	"context"
	"fmt"

	"github.com/trovamart/marketpay/internal/domain/wallet"
)

type walletRepo struct{ v *view }

func (r *walletRepo) Get(ctx context.Context, ownerID string) (*wallet.Wallet, error) {
	_ = ctx
	var found *wallet.Wallet
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if w, ok := ov.wallets[ownerID]; ok {
				found = w.Clone()
				return
			}
		}
		if w, ok := t.wallets[ownerID]; ok {
			found = w.Clone()
		}
	})
	if found == nil {
		return nil, wallet.ErrNotFound
	}
	return found, nil
}

func (r *walletRepo) Save(ctx context.Context, w *wallet.Wallet) error {
	_ = ctx
	if w == nil || w.OwnerID == "" {
		return fmt.Errorf("wallet repository: owner id is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		ov.wallets[w.OwnerID] = w.Clone()
		return nil
	})
}
