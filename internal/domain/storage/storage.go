package storage

import (
	"context"

	"github.com/trovamart/marketpay/internal/domain/account"
	"github.com/trovamart/marketpay/internal/domain/cart"
	"github.com/trovamart/marketpay/internal/domain/coupon"
	"github.com/trovamart/marketpay/internal/domain/ledger"
	"github.com/trovamart/marketpay/internal/domain/order"
	"github.com/trovamart/marketpay/internal/domain/payout"
	"github.com/trovamart/marketpay/internal/domain/wallet"
)

// UnitOfWork exposes every repository over one consistent view of the data.
type UnitOfWork interface {
	Accounts() account.Repository
	Wallets() wallet.Repository
	Carts() cart.Repository
	Orders() order.Repository
	Ledger() ledger.Repository
	Recipients() payout.RecipientRepository
	Coupons() coupon.Repository
}

// Store is the serialization boundary for every balance-touching flow. Writers
// read-modify-write wallets, orders, and ledger entries inside one Atomically
// block; either every staged mutation commits or none does. Repository access
// outside Atomically auto-commits per call and is for reads.
type Store interface {
	UnitOfWork
	Atomically(ctx context.Context, fn func(uow UnitOfWork) error) error
}
