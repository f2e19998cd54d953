package reconcile

import (
	"context"
	"time"

	domgateway "github.com/trovamart/marketpay/internal/domain/gateway"
	domledger "github.com/trovamart/marketpay/internal/domain/ledger"
	"github.com/trovamart/marketpay/internal/domain/storage"
	"github.com/trovamart/marketpay/internal/observability"
	"github.com/trovamart/marketpay/internal/observability/logctx"

	"github.com/trovamart/marketpay/internal/application/webhook"
)

const sweeperComponent = "reconcile-sweeper"

// Applier applies a reconciled gateway event. Satisfied by webhook.ApplyUseCase.
type Applier interface {
	Execute(ctx context.Context, evt webhook.Event) (*webhook.Result, error)
}

// Sweeper periodically reconciles ledger entries that webhooks never settled.
// Charges stuck in flight past the threshold are verified against the gateway
// and replayed through the same idempotent apply path the webhook uses, so a
// webhook that arrives later becomes a duplicate no-op. Failed payouts whose
// reversing credit is still owed are exported as a gauge for alerting.
type Sweeper struct {
	store    storage.Store
	gateway  domgateway.Client
	applier  Applier
	interval time.Duration
	stuckAge time.Duration

	log         observability.Logger
	outstanding observability.Gauge
}

func NewSweeper(
	store storage.Store,
	gw domgateway.Client,
	applier Applier,
	interval, stuckAge time.Duration,
	tel observability.Telemetry,
) *Sweeper {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if stuckAge <= 0 {
		stuckAge = 10 * time.Minute
	}
	return &Sweeper{
		store:       store,
		gateway:     gw,
		applier:     applier,
		interval:    interval,
		stuckAge:    stuckAge,
		log:         tel.Logger().With(observability.F("component", sweeperComponent)),
		outstanding: tel.Gauge(observability.MCompensationOutstanding),
	}
}

// Run blocks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	logger := logctx.FromOr(ctx, s.log)
	logger.Info("sweeper_started",
		observability.F("interval", s.interval.String()),
		observability.F("stuck_age", s.stuckAge.String()),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	logger := logctx.FromOr(ctx, s.log)

	cutoff := time.Now().UTC().Add(-s.stuckAge)
	inFlight, err := s.store.Ledger().ListInFlight(ctx, cutoff)
	if err != nil {
		logger.Error("sweep_list_failed", observability.F("error", err.Error()))
		return
	}
	for _, entry := range inFlight {
		s.reconcileCharge(ctx, logger, entry)
	}

	owed, err := s.store.Ledger().ListAwaitingCompensation(ctx)
	if err != nil {
		logger.Error("sweep_compensation_list_failed", observability.F("error", err.Error()))
		return
	}
	s.outstanding.Set(float64(len(owed)))
	for _, entry := range owed {
		logger.Warn("compensation_outstanding",
			observability.F("reference", entry.Reference),
			observability.F("vendor_id", entry.OwnerID),
			observability.F("amount", entry.Amount.String()),
		)
	}
}

// reconcileCharge polls charge-verify for stuck charge entries. Payout entries
// are skipped; the gateway offers no transfer-verify and the failure webhook
// or an operator resolves them.
func (s *Sweeper) reconcileCharge(ctx context.Context, logger observability.Logger, entry *domledger.Transaction) {
	if entry.Purpose == domledger.PurposePayout {
		return
	}

	status, err := s.gateway.VerifyCharge(ctx, entry.Reference)
	if err != nil {
		logger.Warn("sweep_verify_failed",
			observability.F("reference", entry.Reference),
			observability.F("error", err.Error()),
		)
		return
	}

	var evtType string
	switch status.Status {
	case "success":
		evtType = webhook.EventChargeSuccess
	case "failed", "abandoned":
		evtType = webhook.EventChargeFailed
	default:
		return
	}

	res, err := s.applier.Execute(ctx, webhook.Event{
		Type:        evtType,
		Reference:   entry.Reference,
		AmountMinor: status.AmountMinor,
		Reason:      "reconciled by sweep",
	})
	if err != nil {
		logger.Error("sweep_apply_failed",
			observability.F("reference", entry.Reference),
			observability.F("error", err.Error()),
		)
		return
	}
	logger.Info("sweep_reconciled",
		observability.F("reference", entry.Reference),
		observability.F("event_type", evtType),
		observability.F("outcome", string(res.Outcome)),
	)
}
