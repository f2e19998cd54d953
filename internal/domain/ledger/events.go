package ledger

import "time"

// WalletCreditedEvent is emitted whenever settlement credits a wallet, both on
// top-ups and on vendor settlement shares.
type WalletCreditedEvent struct {
	Reference  string
	OwnerID    string
	Amount     string
	Purpose    Purpose
	OccurredAt time.Time
}

func (WalletCreditedEvent) EventName() string { return "wallet.credited" }

// PayoutInitiatedEvent is emitted after a transfer was accepted by the gateway
// and the vendor wallet was optimistically debited.
type PayoutInitiatedEvent struct {
	Reference  string
	VendorID   string
	Amount     string
	OccurredAt time.Time
}

func (PayoutInitiatedEvent) EventName() string { return "payout.initiated" }

// PayoutCompensatedEvent is emitted after a transfer failure credited the
// vendor wallet back.
type PayoutCompensatedEvent struct {
	Reference  string
	VendorID   string
	Amount     string
	Reason     string
	OccurredAt time.Time
}

func (PayoutCompensatedEvent) EventName() string { return "payout.compensated" }
