package notification

import "context"

// Notifier delivers short in-app notices. Implementations must not block the
// event handler; failures are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string) error
}

// Mailer delivers email receipts.
type Mailer interface {
	Send(ctx context.Context, userID, subject, body string) error
}
