package coupon

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
	domcoupon "github.com/trovamart/marketpay/internal/domain/coupon"
	"github.com/trovamart/marketpay/internal/domain/money"
	domorder "github.com/trovamart/marketpay/internal/domain/order"
	"github.com/trovamart/marketpay/internal/domain/storage"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"
)

const (
	couponService = "coupon-service"
	useCaseApply  = "coupon.apply"
	spanPrefix    = "UC."
)

type ApplyInput struct {
	OrderID string
	BuyerID string
	Code    string
}

type ApplyResult struct {
	OrderID  string
	Code     string
	Saved    decimal.Decimal
	NewTotal decimal.Decimal
}

// ApplyUseCase discounts every item of the coupon's vendor by the coupon's
// percentage in one application. Re-applying the same code is rejected once no
// undiscounted item remains, and the aggregate totals move in lockstep with
// the lines so the totals invariant holds afterwards.
type ApplyUseCase struct {
	store storage.Store
	tel   observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ application.UseCase[ApplyInput, *ApplyResult] = (*ApplyUseCase)(nil)

func NewApplyUseCase(store storage.Store, tel observability.Telemetry) *ApplyUseCase {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &ApplyUseCase{
		store:        store,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", couponService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

func (uc *ApplyUseCase) Execute(ctx context.Context, cmd ApplyInput) (_ *ApplyResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseApply),
		observability.F("order_id", cmd.OrderID),
		observability.F("coupon_code", cmd.Code),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"ApplyCoupon",
		attribute.String("use_case", useCaseApply),
		attribute.String("coupon.order_id", cmd.OrderID),
		attribute.String("coupon.code", cmd.Code),
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
			observability.L("use_case", useCaseApply),
			observability.L("outcome", outcome),
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

	if cmd.OrderID == "" || cmd.Code == "" {
		outcome, statusText = "error", "INPUT_INVALID"
		return nil, application.Validation("order id and coupon code are required")
	}

	var result *ApplyResult
	err = uc.store.Atomically(ctx, func(uow storage.UnitOfWork) error {
		c, err := uow.Coupons().GetByCode(ctx, cmd.Code)
		if err != nil {
			return err
		}

		ord, err := uow.Orders().Get(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if cmd.BuyerID != "" && ord.BuyerID != cmd.BuyerID {
			return domorder.ErrNotFound
		}
		if !ord.AcceptsCoupons() {
			return domorder.ErrImmutable
		}

		// One application covers every item of the issuing vendor that does
		// not already carry the code.
		saved := money.Zero()
		matched, applied := false, false
		for _, it := range ord.Items {
			if it.VendorID != c.VendorID {
				continue
			}
			matched = true
			if it.HasCoupon(c.Code) {
				continue
			}
			d := money.Percent(it.Total, c.Discount)
			it.ApplyDiscount(c.Code, d)
			ord.ApplyItemDiscount(d)
			saved = saved.Add(d)
			applied = true
		}
		if !matched {
			return domcoupon.ErrNoMatchingItem
		}
		if !applied {
			return domcoupon.ErrAlreadyApplied
		}

		if err := ord.CheckTotals(); err != nil {
			return err
		}
		if err := uow.Orders().Update(ctx, ord); err != nil {
			return fmt.Errorf("%w: %w", application.ErrRepository, err)
		}

		result = &ApplyResult{
			OrderID:  ord.ID,
			Code:     c.Code,
			Saved:    saved,
			NewTotal: ord.Total,
		}
		return nil
	})
	if err != nil {
		outcome, statusText = "error", "APPLY_FAILED"
		switch {
		case errors.Is(err, domcoupon.ErrNotFound):
			statusText = "COUPON_NOT_FOUND"
		case errors.Is(err, domcoupon.ErrAlreadyApplied):
			statusText = "ALREADY_APPLIED"
		case errors.Is(err, domcoupon.ErrNoMatchingItem):
			statusText = "NO_MATCHING_ITEM"
		case errors.Is(err, domorder.ErrImmutable):
			statusText = "ORDER_IMMUTABLE"
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("coupon.saved", result.Saved.String()))
	return result, nil
}
