package account

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound = errors.New("account: not found")
	// ErrPasswordNotSet signals a setup-required redirect, not a hard failure.
	ErrPasswordNotSet  = errors.New("account: transaction password not set")
	ErrPasswordInvalid = errors.New("account: transaction password mismatch")
)

type Kind string

const (
	KindBuyer  Kind = "buyer"
	KindVendor Kind = "vendor"
)

// Account is the buyer/vendor profile slice this service owns: identity plus
// the second-factor transaction password guarding money movement.
type Account struct {
	ID           string
	Kind         Kind
	Email        string
	Name         string
	passwordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func New(id string, kind Kind, email, name string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Kind:      kind,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetTransactionPassword hashes and stores the second factor.
func (a *Account) SetTransactionPassword(pw string) error {
	if pw == "" {
		return errors.New("account: transaction password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.passwordHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// VerifyTransactionPassword distinguishes "never set" (setup required) from a
// plain mismatch.
func (a *Account) VerifyTransactionPassword(pw string) error {
	if len(a.passwordHash) == 0 {
		return ErrPasswordNotSet
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(pw)); err != nil {
		return ErrPasswordInvalid
	}
	return nil
}

// HasTransactionPassword reports whether the second factor has been configured.
func (a *Account) HasTransactionPassword() bool { return len(a.passwordHash) > 0 }

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.passwordHash = append([]byte(nil), a.passwordHash...)
	return &clone
}
