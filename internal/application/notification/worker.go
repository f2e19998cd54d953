package notification

import (
	"context"
	"fmt"

	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	domoutbox "github.com/trovamart/marketpay/internal/domain/outbox"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const workerComponent = "notification-worker"

// Worker turns settlement events into buyer and vendor notifications. It runs
// on the event bus after commit, so a delivery failure never affects the
// transaction that produced the event.
type Worker struct {
	notifier Notifier
	mailer   Mailer
	log      observability.Logger
}

func NewWorker(notifier Notifier, mailer Mailer, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		notifier: notifier,
		mailer:   mailer,
		log:      logger.With(observability.F("component", workerComponent)),
	}
}

// Register wires the worker's handlers into the bus.
func (w *Worker) Register(sub domoutbox.Subscriber) {
	sub.Subscribe(domorder.OrderCreatedEvent{}.EventName(), w.onOrderCreated)
	sub.Subscribe(domorder.OrderPaidEvent{}.EventName(), w.onOrderPaid)
	sub.Subscribe(domorder.OrderFailedEvent{}.EventName(), w.onOrderFailed)
	sub.Subscribe(domledger.WalletCreditedEvent{}.EventName(), w.onWalletCredited)
	sub.Subscribe(domledger.PayoutInitiatedEvent{}.EventName(), w.onPayoutInitiated)
	sub.Subscribe(domledger.PayoutCompensatedEvent{}.EventName(), w.onPayoutCompensated)
}

func (w *Worker) onOrderCreated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventName())
	}
	w.notify(ctx, evt.BuyerID, "Order placed",
		fmt.Sprintf("Your order %s for %s was created.", evt.OrderID, evt.Total))
	for _, vendorID := range evt.VendorIDs {
		w.notify(ctx, vendorID, "New order",
			fmt.Sprintf("Order %s includes your items.", evt.OrderID))
	}
	return nil
}

func (w *Worker) onOrderPaid(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPaidEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventName())
	}
	w.notify(ctx, evt.BuyerID, "Payment received",
		fmt.Sprintf("Order %s is paid.", evt.OrderID))
	w.mail(ctx, evt.BuyerID, "Your receipt",
		fmt.Sprintf("Order %s settled for %s.", evt.OrderID, evt.Total))
	for _, vendorID := range evt.VendorIDs {
		w.notify(ctx, vendorID, "Order paid",
			fmt.Sprintf("Order %s settled; your wallet was credited.", evt.OrderID))
	}
	return nil
}

func (w *Worker) onOrderFailed(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderFailedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventName())
	}
	w.notify(ctx, evt.BuyerID, "Payment failed",
		fmt.Sprintf("Order %s could not be charged: %s", evt.OrderID, evt.Reason))
	return nil
}

func (w *Worker) onWalletCredited(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domledger.WalletCreditedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventName())
	}
	w.notify(ctx, evt.OwnerID, "Wallet credited",
		fmt.Sprintf("Your wallet was credited with %s.", evt.Amount))
	return nil
}

func (w *Worker) onPayoutInitiated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domledger.PayoutInitiatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventName())
	}
	w.notify(ctx, evt.VendorID, "Withdrawal started",
		fmt.Sprintf("Your withdrawal of %s is being processed.", evt.Amount))
	return nil
}

func (w *Worker) onPayoutCompensated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domledger.PayoutCompensatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s", e.EventName())
	}
	w.notify(ctx, evt.VendorID, "Withdrawal failed",
		fmt.Sprintf("Your withdrawal of %s failed and was returned to your wallet: %s", evt.Amount, evt.Reason))
	w.mail(ctx, evt.VendorID, "Withdrawal reversed",
		fmt.Sprintf("Transfer %s failed (%s); the amount is back in your wallet.", evt.Reference, evt.Reason))
	return nil
}

func (w *Worker) notify(ctx context.Context, userID, title, body string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, userID, title, body); err != nil {
		logctx.FromOr(ctx, w.log).Warn("notify_failed",
			observability.F("user_id", userID),
			observability.F("error", err.Error()),
		)
	}
}

func (w *Worker) mail(ctx context.Context, userID, subject, body string) {
	if w.mailer == nil {
		return
	}
	if err := w.mailer.Send(ctx, userID, subject, body); err != nil {
		logctx.FromOr(ctx, w.log).Warn("mail_failed",
			observability.F("user_id", userID),
			observability.F("error", err.Error()),
		)
	}
}
