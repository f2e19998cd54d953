package payout

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
	domgateway "github.com/trovamart/marketpay/internal/domain/gateway"
	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	"github.com/trovamart/marketpay/internal/domain/money"
	domoutbox "github.com/trovamart/marketpay/internal/domain/outbox"
	dompayout "github.com/trovamart/marketpay/internal/domain/payout"
	"github.com/trovamart/marketpay/internal/domain/storage"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const (
	payoutService   = "payout-service"
	useCaseWithdraw = "payout.withdraw"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

// IDGenerator produces transfer references and ledger identifiers.
type IDGenerator interface {
	NewID() string
}

type WithdrawInput struct {
	VendorID            string
	TransactionPassword string
	Amount              decimal.Decimal
	AccountNumber       string
	AccountName         string
	BankName            string
}

type WithdrawResult struct {
	Reference string
	Status    domledger.Status
	Amount    decimal.Decimal
}

// WithdrawUseCase initiates a bank transfer for a vendor. The wallet is
// debited optimistically at initiation, and a transfer-failure webhook is the
// compensation path; a synchronous gateway rejection leaves the balance
// untouched.
type WithdrawUseCase struct {
	store       storage.Store
	gateway     domgateway.Client
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tel         observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ application.UseCase[WithdrawInput, *WithdrawResult] = (*WithdrawUseCase)(nil)

func NewWithdrawUseCase(
	store storage.Store,
	gw domgateway.Client,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Telemetry,
) *WithdrawUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &WithdrawUseCase{
		store:        store,
		gateway:      gw,
		idGenerator:  idGen,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", payoutService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *WithdrawUseCase) Execute(ctx context.Context, cmd WithdrawInput) (_ *WithdrawResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseWithdraw),
		observability.F("vendor_id", cmd.VendorID),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"Withdraw",
		attribute.String("use_case", useCaseWithdraw),
		attribute.String("payout.vendor_id", cmd.VendorID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

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
		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseWithdraw),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseWithdraw),
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

	if cmd.VendorID == "" {
		outcome, statusText = "error", "VENDOR_ID_REQUIRED"
		return nil, application.Validation("vendor id is required")
	}
	if cmd.TransactionPassword == "" {
		outcome, statusText = "error", "PASSWORD_REQUIRED"
		return nil, application.Validation("transaction password is required")
	}
	if cmd.Amount.Sign() <= 0 {
		outcome, statusText = "error", "AMOUNT_INVALID"
		return nil, application.Validation("amount must be greater than zero")
	}

	vendor, err := uc.store.Accounts().Get(ctx, cmd.VendorID)
	if err != nil {
		outcome, statusText = "error", "VENDOR_LOOKUP_FAILED"
		return nil, err
	}
	if err := vendor.VerifyTransactionPassword(cmd.TransactionPassword); err != nil {
		outcome, statusText = "error", "PASSWORD_CHECK_FAILED"
		return nil, err
	}

	// Balance precondition before anything leaves the process: an
	// insufficient wallet never produces a gateway call.
	w, err := uc.store.Wallets().Get(ctx, cmd.VendorID)
	if err != nil {
		outcome, statusText = "error", "WALLET_LOOKUP_FAILED"
		return nil, err
	}
	if !w.Covers(cmd.Amount) {
		outcome, statusText = "error", "INSUFFICIENT_FUNDS"
		return nil, domwallet.ErrInsufficientFunds
	}

	recipient, err := uc.ensureRecipient(ctx, cmd)
	if err != nil {
		outcome, statusText = "error", "RECIPIENT_FAILED"
		return nil, err
	}

	reference := uc.idGenerator.NewID()
	if _, err = uc.gateway.InitiateTransfer(ctx, domgateway.TransferRequest{
		AmountMinor:   money.ToMinor(cmd.Amount),
		RecipientCode: recipient.RecipientCode,
		Reference:     reference,
		Reason:        "vendor withdrawal",
	}); err != nil {
		// Synchronous rejection: no debit happened, nothing to compensate.
		outcome, statusText = "error", "TRANSFER_INITIATION_FAILED"
		return nil, err
	}

	var entry *domledger.Transaction
	err = uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		vw, err := uow.Wallets().Get(ctx, cmd.VendorID)
		if err != nil {
			return err
		}
		if err := vw.Debit(cmd.Amount); err != nil {
			return err
		}
		if err := uow.Wallets().Save(ctx, vw); err != nil {
			return err
		}

		entry, err = domledger.New(uc.idGenerator.NewID(), reference, cmd.VendorID, string(domwallet.OwnerVendor),
			domledger.KindDebit, domledger.PurposePayout, cmd.Amount)
		if err != nil {
			return err
		}
		if err := entry.MarkProcessing(); err != nil {
			return err
		}
		// Funds are now in flight; a failure webhook owes this entry a
		// reversing credit.
		entry.MarkCompensationPending()
		return uow.Ledger().Insert(ctx, entry)
	})
	if err != nil {
		outcome, statusText = "error", "DEBIT_FAILED"
		return nil, err
	}

	span.SetAttributes(attribute.String("payout.reference", reference))
	uc.publishInitiated(ctx, logger, entry)

	return &WithdrawResult{
		Reference: reference,
		Status:    entry.Status,
		Amount:    cmd.Amount,
	}, nil
}

// ensureRecipient reuses the stored gateway recipient code or registers the
// payee once and persists the returned code. The record is kept even if a
// later transfer initiation fails, so the registration is never repeated.
func (uc *WithdrawUseCase) ensureRecipient(ctx context.Context, cmd WithdrawInput) (*dompayout.Recipient, error) {
	recipient, err := uc.store.Recipients().GetByVendor(ctx, cmd.VendorID)
	if errors.Is(err, dompayout.ErrRecipientNotFound) {
		recipient, err = dompayout.NewRecipient(cmd.VendorID, cmd.AccountNumber, cmd.AccountName, cmd.BankName)
	}
	if err != nil {
		return nil, err
	}
	if recipient.Registered() {
		return recipient, nil
	}

	created, err := uc.gateway.CreateRecipient(ctx, domgateway.RecipientRequest{
		Name:          recipient.AccountName,
		AccountNumber: recipient.AccountNumber,
		BankCode:      recipient.BankCode,
	})
	if err != nil {
		return nil, err
	}
	recipient.SetRecipientCode(created.RecipientCode)
	if err := uc.store.Recipients().Save(ctx, recipient); err != nil {
		return nil, fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
	return recipient, nil
}

func (uc *WithdrawUseCase) publishInitiated(ctx context.Context, logger observability.Logger, entry *domledger.Transaction) {
	if uc.publisher == nil || entry == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	e := domledger.PayoutInitiatedEvent{
		Reference:  entry.Reference,
		VendorID:   entry.OwnerID,
		Amount:     entry.Amount.String(),
		OccurredAt: time.Now().UTC(),
	}
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
