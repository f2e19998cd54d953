// Package memory implements storage.Store as an in-process unit-of-work over
// mutex-guarded maps. Atomically runs the callback against staged overlay
// copies under the exclusive lock and commits them wholesale, so a failure in
// the middle of a checkout or settlement leaves no partial writes behind.
package memory

import (
	"context"
	"sync"

	"github.com/trovamart/marketpay/internal/domain/account"
	"github.com/trovamart/marketpay/internal/domain/cart"
	"github.com/trovamart/marketpay/internal/domain/coupon"
	"github.com/trovamart/marketpay/internal/domain/ledger"
	"github.com/trovamart/marketpay/internal/domain/order"
	"github.com/trovamart/marketpay/internal/domain/payout"
	"github.com/trovamart/marketpay/internal/domain/storage"
	"github.com/trovamart/marketpay/internal/domain/wallet"
)

type tables struct {
	accounts   map[string]*account.Account
	wallets    map[string]*wallet.Wallet
	carts      map[string]map[string]*cart.Line // ownerID -> lineID -> line
	orders     map[string]*order.Order
	orderRefs  map[string]string // payment reference -> order id
	txns       map[string]*ledger.Transaction // keyed by gateway reference
	recipients map[string]*payout.Recipient   // keyed by vendor id
	coupons    map[string]*coupon.Coupon      // keyed by code
}

func newTables() *tables {
	return &tables{
		accounts:   make(map[string]*account.Account),
		wallets:    make(map[string]*wallet.Wallet),
		carts:      make(map[string]map[string]*cart.Line),
		orders:     make(map[string]*order.Order),
		orderRefs:  make(map[string]string),
		txns:       make(map[string]*ledger.Transaction),
		recipients: make(map[string]*payout.Recipient),
		coupons:    make(map[string]*coupon.Coupon),
	}
}

// overlay stages clones of mutated entities until commit.
type overlay struct {
	accounts   map[string]*account.Account
	wallets    map[string]*wallet.Wallet
	cartLines  map[string]map[string]*cart.Line
	cartWipes  map[string]bool // ownerID tombstones
	orders     map[string]*order.Order
	orderRefs  map[string]string
	txns       map[string]*ledger.Transaction
	recipients map[string]*payout.Recipient
	coupons    map[string]*coupon.Coupon
}

func newOverlay() *overlay {
	return &overlay{
		accounts:   make(map[string]*account.Account),
		wallets:    make(map[string]*wallet.Wallet),
		cartLines:  make(map[string]map[string]*cart.Line),
		cartWipes:  make(map[string]bool),
		orders:     make(map[string]*order.Order),
		orderRefs:  make(map[string]string),
		txns:       make(map[string]*ledger.Transaction),
		recipients: make(map[string]*payout.Recipient),
		coupons:    make(map[string]*coupon.Coupon),
	}
}

func (ov *overlay) commit(t *tables) {
	for id, a := range ov.accounts {
		t.accounts[id] = a
	}
	for id, w := range ov.wallets {
		t.wallets[id] = w
	}
	for owner := range ov.cartWipes {
		delete(t.carts, owner)
	}
	for owner, lines := range ov.cartLines {
		if t.carts[owner] == nil {
			t.carts[owner] = make(map[string]*cart.Line)
		}
		for id, l := range lines {
			t.carts[owner][id] = l
		}
	}
	for id, o := range ov.orders {
		t.orders[id] = o
	}
	for ref, id := range ov.orderRefs {
		t.orderRefs[ref] = id
	}
	for ref, tx := range ov.txns {
		t.txns[ref] = tx
	}
	for vendor, r := range ov.recipients {
		t.recipients[vendor] = r
	}
	for code, c := range ov.coupons {
		t.coupons[code] = c
	}
}

// Store holds every table behind one RWMutex; Atomically is the serialization
// boundary required by the money flows.
type Store struct {
	mu   sync.RWMutex
	data *tables
}

func NewStore() *Store {
	return &Store{data: newTables()}
}

// Atomically runs fn against a staged view under the exclusive lock. A nil
// return commits every staged mutation; any error discards them all.
func (s *Store) Atomically(ctx context.Context, fn func(uow storage.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ov := newOverlay()
	if err := fn(&view{s: s, ov: ov}); err != nil {
		return err
	}
	ov.commit(s.data)
	return nil
}

// view implements storage.UnitOfWork. With ov == nil each repository call
// locks and commits on its own; inside Atomically the overlay carries the
// staged state and the store lock is already held.
type view struct {
	s  *Store
	ov *overlay
}

func (v *view) Accounts() account.Repository          { return &accountRepo{v} }
func (v *view) Wallets() wallet.Repository            { return &walletRepo{v} }
func (v *view) Carts() cart.Repository                { return &cartRepo{v} }
func (v *view) Orders() order.Repository              { return &orderRepo{v} }
func (v *view) Ledger() ledger.Repository             { return &ledgerRepo{v} }
func (v *view) Recipients() payout.RecipientRepository { return &recipientRepo{v} }
func (v *view) Coupons() coupon.Repository            { return &couponRepo{v} }

func (s *Store) Accounts() account.Repository           { return (&view{s: s}).Accounts() }
func (s *Store) Wallets() wallet.Repository             { return (&view{s: s}).Wallets() }
func (s *Store) Carts() cart.Repository                 { return (&view{s: s}).Carts() }
func (s *Store) Orders() order.Repository               { return (&view{s: s}).Orders() }
func (s *Store) Ledger() ledger.Repository              { return (&view{s: s}).Ledger() }
func (s *Store) Recipients() payout.RecipientRepository { return (&view{s: s}).Recipients() }
func (s *Store) Coupons() coupon.Repository             { return (&view{s: s}).Coupons() }

var _ storage.Store = (*Store)(nil)

// read runs fn with a consistent read view.
func (v *view) read(fn func(t *tables, ov *overlay)) {
	if v.ov == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
		fn(v.s.data, nil)
		return
	}
	fn(v.s.data, v.ov)
}

// write runs fn with a writable overlay, auto-committing when no transaction
// is open.
func (v *view) write(fn func(t *tables, ov *overlay) error) error {
	if v.ov == nil {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
		ov := newOverlay()
		if err := fn(v.s.data, ov); err != nil {
			return err
		}
		ov.commit(v.s.data)
		return nil
	}
	return fn(v.s.data, v.ov)
}
