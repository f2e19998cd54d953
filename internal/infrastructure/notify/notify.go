// Package notify provides stand-in delivery channels that log instead of
// calling a provider. Swapping in a real push or email service only requires
// implementing the two application ports.
package notify

import (
	"context"

	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

type LogNotifier struct {
	log observability.Logger
}

func NewLogNotifier(logger observability.Logger) *LogNotifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogNotifier{log: logger.With(observability.F("component", "notifier"))}
}

func (n *LogNotifier) Notify(ctx context.Context, userID, title, body string) error {
	logctx.FromOr(ctx, n.log).Info("notification_sent",
		observability.F("user_id", userID),
		observability.F("title", title),
		observability.F("body", body),
	)
	return nil
}

type LogMailer struct {
	log observability.Logger
}

func NewLogMailer(logger observability.Logger) *LogMailer {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogMailer{log: logger.With(observability.F("component", "mailer"))}
}

func (m *LogMailer) Send(ctx context.Context, userID, subject, body string) error {
	logctx.FromOr(ctx, m.log).Info("mail_sent",
		observability.F("user_id", userID),
		observability.F("subject", subject),
		observability.F("body", body),
	)
	return nil
}
