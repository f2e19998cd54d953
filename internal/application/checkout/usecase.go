package checkout

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
	domaccount "github.com/trovamart/marketpay/internal/domain/account"
	domcart "github.com/trovamart/marketpay/internal/domain/cart"
	domgateway "github.com/trovamart/marketpay/internal/domain/gateway"
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
	checkoutService = "checkout-service"
	useCaseCheckout = "checkout.create_order"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

// Method selects how the order is settled. MethodAuto prefers the wallet and
// falls back to an external charge when the balance cannot cover the total.
type Method string

const (
	MethodAuto    Method = ""
	MethodWallet  Method = "wallet"
	MethodGateway Method = "gateway"
)

type CreateOrderInput struct {
	BuyerID             string
	TransactionPassword string
	Method              Method
}

type CreateOrderResult struct {
	OrderID          string
	Status           domorder.Status
	Total            decimal.Decimal
	PaymentReference string
	AuthorizationURL string
}

// CreateOrderUseCase converts a cart into a persisted order. Either the order
// exists with the wallet debited and the cart gone, or nothing changed at all.
type CreateOrderUseCase struct {
	store       storage.Store
	gateway     domgateway.Client
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	tel         observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ application.UseCase[CreateOrderInput, *CreateOrderResult] = (*CreateOrderUseCase)(nil)

func NewCreateOrderUseCase(
	store storage.Store,
	gw domgateway.Client,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Telemetry,
) *CreateOrderUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &CreateOrderUseCase{
		store:        store,
		gateway:      gw,
		idGenerator:  idGen,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", checkoutService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

// Execute runs the checkout flow.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseCheckout),
		attribute.String("order.buyer_id", cmd.BuyerID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var events []domoutbox.Event

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
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseCheckout),
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

	if cmd.BuyerID == "" {
		outcome, statusText = "error", "BUYER_ID_REQUIRED"
		return nil, application.Validation("buyer id is required")
	}
	if cmd.TransactionPassword == "" {
		outcome, statusText = "error", "PASSWORD_REQUIRED"
		return nil, application.Validation("transaction password is required")
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	// Preconditions are checked before any mutation.
	buyer, err := uc.store.Accounts().Get(ctx, cmd.BuyerID)
	if err != nil {
		outcome, statusText = "error", "BUYER_LOOKUP_FAILED"
		return nil, err
	}
	if err := buyer.VerifyTransactionPassword(cmd.TransactionPassword); err != nil {
		outcome, statusText = "error", "PASSWORD_CHECK_FAILED"
		return nil, err
	}

	lines, err := uc.store.Carts().ListByOwner(ctx, cmd.BuyerID)
	if err != nil {
		outcome, statusText = "error", "CART_LOOKUP_FAILED"
		return nil, fmt.Errorf("%w: %w", application.ErrRepository, err)
	}
	if len(lines) == 0 {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, domcart.ErrEmpty
	}

	total := cartTotal(lines)
	covers := false
	if w, werr := uc.store.Wallets().Get(ctx, cmd.BuyerID); werr == nil {
		covers = w.Covers(total)
	} else if !errors.Is(werr, domwallet.ErrNotFound) {
		outcome, statusText = "error", "WALLET_LOOKUP_FAILED"
		return nil, fmt.Errorf("%w: %w", application.ErrRepository, werr)
	}

	var result *CreateOrderResult
	switch {
	case cmd.Method != MethodGateway && covers:
		result, events, err = uc.settleFromWallet(ctx, cmd.BuyerID)
		if err != nil {
			outcome, statusText = "error", "WALLET_SETTLEMENT_FAILED"
			return nil, err
		}
	case cmd.Method == MethodWallet:
		outcome, statusText = "error", "INSUFFICIENT_FUNDS"
		return nil, domwallet.ErrInsufficientFunds
	default:
		result, events, err = uc.settleViaGateway(ctx, buyer, total)
		if err != nil {
			outcome, statusText = "error", "GATEWAY_SETTLEMENT_FAILED"
			return nil, err
		}
		statusText = "CHARGE_INITIATED"
	}

	span.SetAttributes(attribute.String("order.status", string(result.Status)))
	span.AddEvent("order.created",
		trace.WithAttributes(attribute.String("order.id", result.OrderID)),
	)

	uc.publish(ctx, logger, events)
	return result, nil
}

// settleFromWallet creates and settles the order in one atomic block: order
// plus items inserted, buyer debited, vendors credited, ledger entry written,
// cart lines deleted. Any error rolls the whole block back.
func (uc *CreateOrderUseCase) settleFromWallet(ctx context.Context, buyerID string) (*CreateOrderResult, []domoutbox.Event, error) {
	var (
		result *CreateOrderResult
		events []domoutbox.Event
	)
	err := uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		lines, err := uow.Carts().ListByOwner(ctx, buyerID)
		if err != nil {
			return fmt.Errorf("%w: %w", application.ErrRepository, err)
		}
		if len(lines) == 0 {
			return domcart.ErrEmpty
		}

		ord, err := uc.buildOrder(buyerID, lines)
		if err != nil {
			return err
		}
		reference := uc.idGenerator.NewID()
		ord.PaymentReference = reference

		buyerWallet, err := uow.Wallets().Get(ctx, buyerID)
		if err != nil {
			return err
		}
		// Check-then-debit under the same lock: the balance can never go
		// negative through this path.
		if err := buyerWallet.Debit(ord.Total); err != nil {
			return err
		}
		if err := uow.Wallets().Save(ctx, buyerWallet); err != nil {
			return err
		}

		if err := creditVendors(ctx, uow, ord); err != nil {
			return err
		}

		if err := ord.ChargeSucceeded(); err != nil {
			return err
		}
		if err := ord.CheckTotals(); err != nil {
			return err
		}
		if err := uow.Orders().Insert(ctx, ord); err != nil {
			return err
		}

		entry, err := domledger.New(uc.idGenerator.NewID(), reference, buyerID, string(domwallet.OwnerBuyer),
			domledger.KindDebit, domledger.PurposeOrderCharge, ord.Total)
		if err != nil {
			return err
		}
		if err := entry.MarkSuccess(); err != nil {
			return err
		}
		if err := uow.Ledger().Insert(ctx, entry); err != nil {
			return err
		}

		if err := uow.Carts().DeleteByOwner(ctx, buyerID); err != nil {
			return err
		}

		result = &CreateOrderResult{
			OrderID:          ord.ID,
			Status:           ord.Status,
			Total:            ord.Total,
			PaymentReference: reference,
		}
		events = []domoutbox.Event{
			domorder.NewOrderCreatedEvent(ord),
			domorder.NewOrderPaidEvent(ord),
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// settleViaGateway initializes the external charge first, so a synchronous
// gateway rejection leaves no side effects, then persists the pending order.
func (uc *CreateOrderUseCase) settleViaGateway(ctx context.Context, buyer *domaccount.Account, total decimal.Decimal) (*CreateOrderResult, []domoutbox.Event, error) {
	reference := uc.idGenerator.NewID()
	auth, err := uc.gateway.InitializeCharge(ctx, domgateway.ChargeRequest{
		Email:       buyer.Email,
		AmountMinor: money.ToMinor(total),
		Reference:   reference,
	})
	if err != nil {
		return nil, nil, err
	}

	var (
		result *CreateOrderResult
		events []domoutbox.Event
	)
	err = uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		lines, err := uow.Carts().ListByOwner(ctx, buyer.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", application.ErrRepository, err)
		}
		if len(lines) == 0 {
			return domcart.ErrEmpty
		}

		ord, err := uc.buildOrder(buyer.ID, lines)
		if err != nil {
			return err
		}
		ord.PaymentReference = reference
		if err := uow.Orders().Insert(ctx, ord); err != nil {
			return err
		}

		entry, err := domledger.New(uc.idGenerator.NewID(), reference, buyer.ID, string(domwallet.OwnerBuyer),
			domledger.KindCredit, domledger.PurposeOrderCharge, ord.Total)
		if err != nil {
			return err
		}
		if err := entry.MarkProcessing(); err != nil {
			return err
		}
		if err := uow.Ledger().Insert(ctx, entry); err != nil {
			return err
		}

		if err := uow.Carts().DeleteByOwner(ctx, buyer.ID); err != nil {
			return err
		}

		result = &CreateOrderResult{
			OrderID:          ord.ID,
			Status:           ord.Status,
			Total:            ord.Total,
			PaymentReference: reference,
			AuthorizationURL: auth.AuthorizationURL,
		}
		events = []domoutbox.Event{domorder.NewOrderCreatedEvent(ord)}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// buildOrder freezes cart pricing into order items; totals are accumulated
// from the line values, never recomputed from live products.
func (uc *CreateOrderUseCase) buildOrder(buyerID string, lines []*domcart.Line) (*domorder.Order, error) {
	orderID := uc.idGenerator.NewID()
	items := make([]*domorder.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, &domorder.Item{
			ID:         uc.idGenerator.NewID(),
			VendorID:   l.VendorID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			SubTotal:   l.SubTotal,
			Shipping:   l.Shipping,
			Tax:        l.Tax,
			ServiceFee: l.ServiceFee,
			Saved:      decimal.Zero,
			Total:      l.SubTotal,
		})
	}
	return domorder.New(orderID, buyerID, items)
}

// creditVendors distributes each vendor's item totals to its wallet as part
// of immediate settlement.
func creditVendors(ctx context.Context, uow storage.UnitOfWork, ord *domorder.Order) error {
	for _, vendorID := range ord.VendorIDs {
		share := ord.VendorItemTotal(vendorID)
		if !money.IsPositive(share) {
			continue
		}
		w, err := uow.Wallets().Get(ctx, vendorID)
		if errors.Is(err, domwallet.ErrNotFound) {
			w = domwallet.New(vendorID, domwallet.OwnerVendor)
		} else if err != nil {
			return err
		}
		if err := w.Credit(share); err != nil {
			return err
		}
		if err := uow.Wallets().Save(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

func (uc *CreateOrderUseCase) publish(ctx context.Context, logger observability.Logger, events []domoutbox.Event) {
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

func cartTotal(lines []*domcart.Line) decimal.Decimal {
	sub := decimal.Zero
	shipping := decimal.Zero
	tax := decimal.Zero
	fee := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.SubTotal)
		if l.Shipping.GreaterThan(shipping) {
			shipping = l.Shipping
		}
		if l.Tax.GreaterThan(tax) {
			tax = l.Tax
		}
		if l.ServiceFee.GreaterThan(fee) {
			fee = l.ServiceFee
		}
	}
	return sub.Add(shipping).Add(tax).Add(fee)
}
