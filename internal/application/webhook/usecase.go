package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/trovamart/marketpay/internal/application"
	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	"github.com/trovamart/marketpay/internal/domain/money"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	domoutbox "github.com/trovamart/marketpay/internal/domain/outbox"
	"github.com/trovamart/marketpay/internal/domain/storage"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const (
	webhookService = "webhook-service"
	useCaseApply   = "webhook.apply"
	spanPrefix     = "UC."
	publishTimeout = 300 * time.Millisecond
)

// Event types the gateway delivers. Anything else is acknowledged and ignored.
const (
	EventChargeSuccess   = "charge.success"
	EventChargeFailed    = "charge.failed"
	EventTransferSuccess = "transfer.success"
	EventTransferFailed  = "transfer.failed"
)

var (
	// ErrUnknownReference means no ledger entry carries the event's reference.
	ErrUnknownReference = errors.New("webhook: unknown reference")
	// ErrAmountMismatch means the event amount disagrees with the recorded one.
	ErrAmountMismatch = errors.New("webhook: amount does not match ledger entry")
)

// Event is a verified, decoded gateway notification. Signature checking
// happens at the transport boundary before this type is ever constructed.
type Event struct {
	Type        string
	Reference   string
	AmountMinor int64
	Reason      string
}

type Result struct {
	Reference string
	Outcome   Outcome
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// ApplyUseCase reconciles gateway webhook events against the ledger. Delivery
// is at least once, so every branch transacts on the reference: a terminal
// entry makes the event a duplicate no-op, and all effects of one event land
// in a single atomic block.
type ApplyUseCase struct {
	store     storage.Store
	publisher domoutbox.Publisher
	tel       observability.Telemetry

	log          observability.Logger
	eventCounter observability.Counter
	durHistogram observability.Histogram
}

func NewApplyUseCase(store storage.Store, publisher domoutbox.Publisher, tel observability.Telemetry) *ApplyUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &ApplyUseCase{
		store:        store,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", webhookService)),
		eventCounter: tel.Counter(observability.MWebhookEvents),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

var _ application.UseCase[Event, *Result] = (*ApplyUseCase)(nil)

// Execute applies one gateway event.
func (uc *ApplyUseCase) Execute(ctx context.Context, evt Event) (_ *Result, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseApply),
		observability.F("event_type", evt.Type),
		observability.F("reference", evt.Reference),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"ApplyWebhook",
		attribute.String("use_case", useCaseApply),
		attribute.String("webhook.type", evt.Type),
		attribute.String("webhook.reference", evt.Reference),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var (
		result *Result
		events []domoutbox.Event
	)

	defer func() {
		lat := time.Since(start).Seconds()
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}
		applied := "error"
		if result != nil {
			applied = string(result.Outcome)
		}
		uc.eventCounter.Add(1,
			observability.L("type", evt.Type),
			observability.L("outcome", applied),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseApply),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if evt.Reference == "" {
		outcome, statusText = "error", "REFERENCE_REQUIRED"
		return nil, application.Validation("event reference is required")
	}

	switch evt.Type {
	case EventChargeSuccess, EventChargeFailed, EventTransferSuccess, EventTransferFailed:
	default:
		// Unrecognized event types are acknowledged so the gateway stops
		// redelivering them.
		statusText = "IGNORED"
		result = &Result{Reference: evt.Reference, Outcome: OutcomeIgnored}
		return result, nil
	}

	err = uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		entry, err := uow.Ledger().GetByReference(ctx, evt.Reference)
		if errors.Is(err, domledger.ErrNotFound) {
			return ErrUnknownReference
		}
		if err != nil {
			return fmt.Errorf("%w: %w", application.ErrRepository, err)
		}

		if entry.IsTerminal() {
			result = &Result{Reference: evt.Reference, Outcome: OutcomeDuplicate}
			return nil
		}
		if evt.AmountMinor != 0 && evt.AmountMinor != money.ToMinor(entry.Amount) {
			return ErrAmountMismatch
		}

		switch evt.Type {
		case EventChargeSuccess:
			events, err = uc.applyChargeSuccess(ctx, uow, entry)
		case EventChargeFailed:
			events, err = uc.applyChargeFailed(ctx, uow, entry, evt.Reason)
		case EventTransferSuccess:
			err = applyTransferSuccess(ctx, uow, entry)
		case EventTransferFailed:
			events, err = uc.applyTransferFailed(ctx, uow, entry, evt.Reason)
		}
		if err != nil {
			return err
		}
		result = &Result{Reference: evt.Reference, Outcome: OutcomeApplied}
		return nil
	})
	if err != nil {
		outcome, statusText = "error", "APPLY_FAILED"
		switch {
		case errors.Is(err, ErrUnknownReference):
			statusText = "UNKNOWN_REFERENCE"
		case errors.Is(err, ErrAmountMismatch):
			statusText = "AMOUNT_MISMATCH"
		}
		return nil, err
	}

	if result.Outcome == OutcomeDuplicate {
		statusText = "DUPLICATE"
	}
	uc.publish(ctx, logger, events)
	return result, nil
}

// applyChargeSuccess settles the entry. A wallet top-up credits the owner; an
// order charge marks the order paid and distributes vendor shares.
func (uc *ApplyUseCase) applyChargeSuccess(ctx context.Context, uow storage.UnitOfWork, entry *domledger.Transaction) ([]domoutbox.Event, error) {
	if err := entry.MarkSuccess(); err != nil {
		return nil, err
	}
	if err := uow.Ledger().Update(ctx, entry); err != nil {
		return nil, err
	}

	switch entry.Purpose {
	case domledger.PurposeWalletTopup:
		if err := creditWallet(ctx, uow, entry.OwnerID, domwallet.OwnerKind(entry.OwnerKind), entry.Amount); err != nil {
			return nil, err
		}
		return []domoutbox.Event{domledger.WalletCreditedEvent{
			Reference:  entry.Reference,
			OwnerID:    entry.OwnerID,
			Amount:     entry.Amount.String(),
			Purpose:    entry.Purpose,
			OccurredAt: time.Now().UTC(),
		}}, nil

	case domledger.PurposeOrderCharge:
		ord, err := uow.Orders().GetByReference(ctx, entry.Reference)
		if err != nil {
			return nil, err
		}
		if err := ord.ChargeSucceeded(); err != nil {
			return nil, err
		}
		for _, vendorID := range ord.VendorIDs {
			share := ord.VendorItemTotal(vendorID)
			if !money.IsPositive(share) {
				continue
			}
			if err := creditWallet(ctx, uow, vendorID, domwallet.OwnerVendor, share); err != nil {
				return nil, err
			}
		}
		if err := uow.Orders().Update(ctx, ord); err != nil {
			return nil, err
		}
		return []domoutbox.Event{domorder.NewOrderPaidEvent(ord)}, nil
	}
	return nil, nil
}

func (uc *ApplyUseCase) applyChargeFailed(ctx context.Context, uow storage.UnitOfWork, entry *domledger.Transaction, reason string) ([]domoutbox.Event, error) {
	if err := entry.MarkFailed(reason); err != nil {
		return nil, err
	}
	if err := uow.Ledger().Update(ctx, entry); err != nil {
		return nil, err
	}

	if entry.Purpose != domledger.PurposeOrderCharge {
		return nil, nil
	}
	ord, err := uow.Orders().GetByReference(ctx, entry.Reference)
	if err != nil {
		return nil, err
	}
	if err := ord.ChargeFailed(reason); err != nil {
		return nil, err
	}
	if err := uow.Orders().Update(ctx, ord); err != nil {
		return nil, err
	}
	return []domoutbox.Event{domorder.NewOrderFailedEvent(ord, reason)}, nil
}

func applyTransferSuccess(ctx context.Context, uow storage.UnitOfWork, entry *domledger.Transaction) error {
	if err := entry.MarkSuccess(); err != nil {
		return err
	}
	// Funds landed; the optimistic debit stands.
	entry.ClearCompensation()
	return uow.Ledger().Update(ctx, entry)
}

// applyTransferFailed credits the optimistic debit back exactly once. The
// terminal-status guard upstream makes a redelivered failure a no-op, so the
// compensating credit can never double.
func (uc *ApplyUseCase) applyTransferFailed(ctx context.Context, uow storage.UnitOfWork, entry *domledger.Transaction, reason string) ([]domoutbox.Event, error) {
	if err := entry.MarkFailed(reason); err != nil {
		return nil, err
	}
	if err := creditWallet(ctx, uow, entry.OwnerID, domwallet.OwnerKind(entry.OwnerKind), entry.Amount); err != nil {
		return nil, err
	}
	entry.MarkCompensationApplied()
	if err := uow.Ledger().Update(ctx, entry); err != nil {
		return nil, err
	}
	return []domoutbox.Event{domledger.PayoutCompensatedEvent{
		Reference:  entry.Reference,
		VendorID:   entry.OwnerID,
		Amount:     entry.Amount.String(),
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}}, nil
}

func creditWallet(ctx context.Context, uow storage.UnitOfWork, ownerID string, kind domwallet.OwnerKind, amount decimal.Decimal) error {
	w, err := uow.Wallets().Get(ctx, ownerID)
	if errors.Is(err, domwallet.ErrNotFound) {
		w = domwallet.New(ownerID, kind)
	} else if err != nil {
		return err
	}
	if err := w.Credit(amount); err != nil {
		return err
	}
	return uow.Wallets().Save(ctx, w)
}

func (uc *ApplyUseCase) publish(ctx context.Context, logger observability.Logger, events []domoutbox.Event) {
	if uc.publisher == nil {
		return
	}
	for _, e := range events {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		if err := uc.publisher.Publish(pubCtx, e); err != nil {
			logger.Warn("event_publish_failed",
				observability.F("event", e.EventName()),
				observability.F("error", err.Error()),
			)
		}
		cancel()
	}
}
