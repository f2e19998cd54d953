package memory

import (
	"context"
	"fmt"

	"github.com/trovamart/marketpay/internal/domain/payout"
)

type recipientRepo struct{ v *view }

func (r *recipientRepo) GetByVendor(ctx context.Context, vendorID string) (*payout.Recipient, error) {
	_ = ctx
	var found *payout.Recipient
	r.v.read(func(t *tables, ov *overlay) {
		if ov != nil {
			if rec, ok := ov.recipients[vendorID]; ok {
				found = rec.Clone()
				return
			}
		}
		if rec, ok := t.recipients[vendorID]; ok {
			found = rec.Clone()
		}
	})
	if found == nil {
		return nil, payout.ErrRecipientNotFound
	}
	return found, nil
}

func (r *recipientRepo) Save(ctx context.Context, rec *payout.Recipient) error {
	_ = ctx
	if rec == nil || rec.VendorID == "" {
		return fmt.Errorf("recipient repository: vendor id is required")
	}
	return r.v.write(func(t *tables, ov *overlay) error {
		ov.recipients[rec.VendorID] = rec.Clone()
		return nil
	})
}
