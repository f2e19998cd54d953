package payout

import (
	"errors"
	"time"
)

var (
	ErrRecipientNotFound = errors.New("payout: recipient not found")
	ErrInvalidAccount    = errors.New("payout: account number must be exactly 10 digits")
	ErrUnknownBank       = errors.New("payout: bank name not in directory")
)

// Recipient is a vendor's registered payee at the gateway. It is created at
// most once per vendor; the gateway recipient code is persisted and reused so
// repeated withdrawals never re-register the payee.
type Recipient struct {
	VendorID      string
	AccountNumber string
	AccountName   string
	BankName      string
	BankCode      string
	RecipientCode string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewRecipient(vendorID, accountNumber, accountName, bankName string) (*Recipient, error) {
	if vendorID == "" || accountName == "" {
		return nil, errors.New("payout: vendor id and account name are required")
	}
	if !validAccountNumber(accountNumber) {
		return nil, ErrInvalidAccount
	}
	code, ok := BankCode(bankName)
	if !ok {
		return nil, ErrUnknownBank
	}
	now := time.Now().UTC()
	return &Recipient{
		VendorID:      vendorID,
		AccountNumber: accountNumber,
		AccountName:   accountName,
		BankName:      bankName,
		BankCode:      code,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Registered reports whether a gateway recipient code is already on record.
func (r *Recipient) Registered() bool { return r.RecipientCode != "" }

// SetRecipientCode persists the code returned by the gateway.
func (r *Recipient) SetRecipientCode(code string) {
	r.RecipientCode = code
	r.UpdatedAt = time.Now().UTC()
}

func (r *Recipient) Clone() *Recipient {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

func validAccountNumber(n string) bool {
	if len(n) != 10 {
		return false
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
