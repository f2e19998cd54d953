package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Classification buckets every gateway failure so callers can branch on
// retryability without string-matching messages: validation is user-facing and
// final, server and network are retryable by caller policy.
type Classification string

const (
	ClassValidation Classification = "validation"
	ClassServer     Classification = "server"
	ClassNetwork    Classification = "network"
)

// Error is the single normalized failure shape for all gateway operations.
type Error struct {
	Classification Classification
	Message        string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Classification, e.Message)
}

// Retryable reports whether the caller may safely retry the operation.
func (e *Error) Retryable() bool {
	return e.Classification == ClassServer || e.Classification == ClassNetwork
}

// AsError unwraps a gateway error from an error chain.
func AsError(err error) (*Error, bool) {
	var ge *Error
	ok := errors.As(err, &ge)
	return ge, ok
}

// ChargeRequest initializes an external charge. Amount is in minor units.
type ChargeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
}

// ChargeAuthorization is the redirect handle returned by charge-initialize.
type ChargeAuthorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// ChargeStatus is the advisory result of charge-verify. The webhook remains
// the settlement authority; this is polling only.
type ChargeStatus struct {
	Reference   string
	Status      string
	AmountMinor int64
	PaidAt      string
}

// TransferRequest initiates a payout transfer to a registered recipient.
type TransferRequest struct {
	AmountMinor   int64
	RecipientCode string
	Reference     string
	Reason        string
}

// TransferReceipt acknowledges an accepted transfer initiation.
type TransferReceipt struct {
	Reference    string
	TransferCode string
	Status       string
}

// RecipientRequest registers or updates a payee at the gateway.
type RecipientRequest struct {
	Name          string
	AccountNumber string
	BankCode      string
	Currency      string
}

// Recipient is the gateway's record of a payee.
type Recipient struct {
	RecipientCode string
	Name          string
	AccountNumber string
	BankCode      string
}

// Client wraps the external payment gateway as one typed operation per call.
// Implementations never retry internally; a timeout or connection error means
// "nothing happened" and is reported with ClassNetwork.
type Client interface {
	InitializeCharge(ctx context.Context, req ChargeRequest) (*ChargeAuthorization, error)
	VerifyCharge(ctx context.Context, reference string) (*ChargeStatus, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferReceipt, error)
	CreateRecipient(ctx context.Context, req RecipientRequest) (*Recipient, error)
	UpdateRecipient(ctx context.Context, code string, req RecipientRequest) (*Recipient, error)
	DeleteRecipient(ctx context.Context, code string) error
	FetchRecipient(ctx context.Context, code string) (*Recipient, error)
}
