package wallet

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
	"github.com/trovamart/marketpay/internal/domain/storage"
	domwallet "github.com/trovamart/marketpay/internal/domain/wallet"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const (
	walletService  = "wallet-service"
	useCaseTopup   = "wallet.topup"
	useCaseVerify  = "wallet.verify_topup"
	useCaseBalance = "wallet.balance"
	spanPrefix     = "UC."
	publishTimeout = 300 * time.Millisecond
)

// IDGenerator produces top-up references and ledger identifiers.
type IDGenerator interface {
	NewID() string
}

type TopupInput struct {
	OwnerID string
	Amount  decimal.Decimal
}

type TopupResult struct {
	Reference        string
	AuthorizationURL string
	Amount           decimal.Decimal
}

// TopupUseCase starts an external charge that credits the owner's wallet when
// the success webhook lands. Nothing is credited here; initiation only records
// a pending ledger entry.
type TopupUseCase struct {
	store       storage.Store
	gateway     domgateway.Client
	idGenerator IDGenerator
	tel         observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ application.UseCase[TopupInput, *TopupResult] = (*TopupUseCase)(nil)

func NewTopupUseCase(store storage.Store, gw domgateway.Client, idGen IDGenerator, tel observability.Telemetry) *TopupUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &TopupUseCase{
		store:        store,
		gateway:      gw,
		idGenerator:  idGen,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", walletService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *TopupUseCase) Execute(ctx context.Context, cmd TopupInput) (_ *TopupResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseTopup),
		observability.F("owner_id", cmd.OwnerID),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"Topup",
		attribute.String("use_case", useCaseTopup),
		attribute.String("wallet.owner_id", cmd.OwnerID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		uc.finish(span, logger, useCaseTopup, start, outcome, statusText, err)
	}()

	if cmd.OwnerID == "" {
		outcome, statusText = "error", "OWNER_ID_REQUIRED"
		return nil, application.Validation("owner id is required")
	}
	if cmd.Amount.Sign() <= 0 {
		outcome, statusText = "error", "AMOUNT_INVALID"
		return nil, application.Validation("amount must be greater than zero")
	}

	owner, err := uc.store.Accounts().Get(ctx, cmd.OwnerID)
	if err != nil {
		outcome, statusText = "error", "OWNER_LOOKUP_FAILED"
		return nil, err
	}

	reference := uc.idGenerator.NewID()
	auth, err := uc.gateway.InitializeCharge(ctx, domgateway.ChargeRequest{
		Email:       owner.Email,
		AmountMinor: money.ToMinor(cmd.Amount),
		Reference:   reference,
	})
	if err != nil {
		outcome, statusText = "error", "CHARGE_INITIATION_FAILED"
		return nil, err
	}

	err = uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		entry, err := domledger.New(uc.idGenerator.NewID(), reference, cmd.OwnerID, string(domwallet.OwnerBuyer),
			domledger.KindCredit, domledger.PurposeWalletTopup, cmd.Amount)
		if err != nil {
			return err
		}
		if err := entry.MarkProcessing(); err != nil {
			return err
		}
		return uow.Ledger().Insert(ctx, entry)
	})
	if err != nil {
		outcome, statusText = "error", "LEDGER_WRITE_FAILED"
		return nil, fmt.Errorf("%w: %w", application.ErrRepository, err)
	}

	span.SetAttributes(attribute.String("wallet.reference", reference))
	return &TopupResult{
		Reference:        reference,
		AuthorizationURL: auth.AuthorizationURL,
		Amount:           cmd.Amount,
	}, nil
}

type VerifyTopupInput struct {
	Reference string
}

type VerifyTopupResult struct {
	Reference string
	Status    domledger.Status
	Settled   bool
}

// VerifyTopupUseCase polls the gateway's charge-verify endpoint for a pending
// top-up. The webhook is still the settlement authority; this path settles
// early only when verify reports success, with the same terminal guard, so a
// later webhook becomes a duplicate no-op.
type VerifyTopupUseCase struct {
	store     storage.Store
	gateway   domgateway.Client
	publisher domoutbox.Publisher
	tel       observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ application.UseCase[VerifyTopupInput, *VerifyTopupResult] = (*VerifyTopupUseCase)(nil)

func NewVerifyTopupUseCase(store storage.Store, gw domgateway.Client, publisher domoutbox.Publisher, tel observability.Telemetry) *VerifyTopupUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &VerifyTopupUseCase{
		store:        store,
		gateway:      gw,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", walletService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *VerifyTopupUseCase) Execute(ctx context.Context, cmd VerifyTopupInput) (_ *VerifyTopupResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseVerify),
		observability.F("reference", cmd.Reference),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"VerifyTopup",
		attribute.String("use_case", useCaseVerify),
		attribute.String("wallet.reference", cmd.Reference),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		finish(uc.reqCounter, uc.durHistogram, span, logger, useCaseVerify, start, outcome, statusText, err)
	}()

	if cmd.Reference == "" {
		outcome, statusText = "error", "REFERENCE_REQUIRED"
		return nil, application.Validation("reference is required")
	}

	entry, err := uc.store.Ledger().GetByReference(ctx, cmd.Reference)
	if err != nil {
		outcome, statusText = "error", "LEDGER_LOOKUP_FAILED"
		return nil, err
	}
	if entry.Purpose != domledger.PurposeWalletTopup {
		outcome, statusText = "error", "NOT_A_TOPUP"
		return nil, application.Validation("reference does not belong to a wallet top-up")
	}
	if entry.IsTerminal() {
		return &VerifyTopupResult{Reference: entry.Reference, Status: entry.Status, Settled: true}, nil
	}

	status, err := uc.gateway.VerifyCharge(ctx, cmd.Reference)
	if err != nil {
		outcome, statusText = "error", "VERIFY_FAILED"
		return nil, err
	}
	if status.Status != "success" {
		statusText = "STILL_PENDING"
		return &VerifyTopupResult{Reference: entry.Reference, Status: entry.Status, Settled: false}, nil
	}

	var settled *domledger.Transaction
	err = uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		e, err := uow.Ledger().GetByReference(ctx, cmd.Reference)
		if err != nil {
			return err
		}
		if e.IsTerminal() {
			settled = e
			return nil
		}
		if err := e.MarkSuccess(); err != nil {
			return err
		}
		if err := uow.Ledger().Update(ctx, e); err != nil {
			return err
		}

		w, err := uow.Wallets().Get(ctx, e.OwnerID)
		if errors.Is(err, domwallet.ErrNotFound) {
			w = domwallet.New(e.OwnerID, domwallet.OwnerKind(e.OwnerKind))
		} else if err != nil {
			return err
		}
		if err := w.Credit(e.Amount); err != nil {
			return err
		}
		if err := uow.Wallets().Save(ctx, w); err != nil {
			return err
		}
		settled = e
		return nil
	})
	if err != nil {
		outcome, statusText = "error", "SETTLE_FAILED"
		return nil, err
	}

	uc.publishCredited(ctx, logger, settled)
	return &VerifyTopupResult{Reference: settled.Reference, Status: settled.Status, Settled: true}, nil
}

func (uc *VerifyTopupUseCase) publishCredited(ctx context.Context, logger observability.Logger, entry *domledger.Transaction) {
	if uc.publisher == nil || entry == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	e := domledger.WalletCreditedEvent{
		Reference:  entry.Reference,
		OwnerID:    entry.OwnerID,
		Amount:     entry.Amount.String(),
		Purpose:    entry.Purpose,
		OccurredAt: time.Now().UTC(),
	}
	if err := uc.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

type BalanceInput struct {
	OwnerID string
}

type BalanceResult struct {
	OwnerID   string
	OwnerKind domwallet.OwnerKind
	Balance   decimal.Decimal
}

// BalanceUseCase reads the current wallet balance. An owner that never
// received funds reads as a zero balance rather than an error.
type BalanceUseCase struct {
	store storage.Store
	tel   observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ application.UseCase[BalanceInput, *BalanceResult] = (*BalanceUseCase)(nil)

func NewBalanceUseCase(store storage.Store, tel observability.Telemetry) *BalanceUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &BalanceUseCase{
		store:        store,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", walletService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *BalanceUseCase) Execute(ctx context.Context, cmd BalanceInput) (_ *BalanceResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseBalance),
		observability.F("owner_id", cmd.OwnerID),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"Balance",
		attribute.String("use_case", useCaseBalance),
		attribute.String("wallet.owner_id", cmd.OwnerID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		finish(uc.reqCounter, uc.durHistogram, span, logger, useCaseBalance, start, outcome, statusText, err)
	}()

	if cmd.OwnerID == "" {
		outcome, statusText = "error", "OWNER_ID_REQUIRED"
		return nil, application.Validation("owner id is required")
	}

	w, err := uc.store.Wallets().Get(ctx, cmd.OwnerID)
	if errors.Is(err, domwallet.ErrNotFound) {
		err = nil
		return &BalanceResult{OwnerID: cmd.OwnerID, OwnerKind: domwallet.OwnerBuyer, Balance: money.Zero()}, nil
	}
	if err != nil {
		outcome, statusText = "error", "WALLET_LOOKUP_FAILED"
		return nil, fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
	return &BalanceResult{OwnerID: w.OwnerID, OwnerKind: w.OwnerKind, Balance: w.Balance}, nil
}

func (uc *TopupUseCase) finish(span trace.Span, logger observability.Logger, name string, start time.Time, outcome, statusText string, err error) {
	finish(uc.reqCounter, uc.durHistogram, span, logger, name, start, outcome, statusText, err)
}

func finish(
	counter observability.Counter,
	hist observability.Histogram,
	span trace.Span,
	logger observability.Logger,
	name string,
	start time.Time,
	outcome, statusText string,
	err error,
) {
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
	counter.Add(1,
		observability.L("use_case", name),
		observability.L("outcome", outcome),
	)
	hist.Observe(lat,
		observability.L("use_case", name),
	)

	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", lat),
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logger.Info("use_case_done", fields...)
}
