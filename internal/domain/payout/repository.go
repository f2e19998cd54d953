package payout

import "context"

type RecipientRepository interface {
	GetByVendor(ctx context.Context, vendorID string) (*Recipient, error)
	Save(ctx context.Context, r *Recipient) error
}
