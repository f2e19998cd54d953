package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	appcheckout "github.com/trovamart/marketpay/internal/application/checkout"
	appcoupon "github.com/trovamart/marketpay/internal/application/coupon"
	"github.com/trovamart/marketpay/internal/application/notification"
	apppayout "github.com/trovamart/marketpay/internal/application/payout"
	"github.com/trovamart/marketpay/internal/application/reconcile"
	appwallet "github.com/trovamart/marketpay/internal/application/wallet"
	appwebhook "github.com/trovamart/marketpay/internal/application/webhook"
	"github.com/trovamart/marketpay/internal/config"
	"github.com/trovamart/marketpay/internal/infrastructure/gatewayhttp"
	"github.com/trovamart/marketpay/internal/infrastructure/id"
	"github.com/trovamart/marketpay/internal/infrastructure/memory"
	"github.com/trovamart/marketpay/internal/infrastructure/notify"
	"github.com/trovamart/marketpay/internal/infrastructure/observability/oteltrace"
	"github.com/trovamart/marketpay/internal/infrastructure/observability/prometrics"
	"github.com/trovamart/marketpay/internal/infrastructure/observability/telemetry"
	"github.com/trovamart/marketpay/internal/infrastructure/observability/zaplogger"
	"github.com/trovamart/marketpay/internal/infrastructure/outbox"
	"github.com/trovamart/marketpay/internal/observability"
	httppresentation "github.com/trovamart/marketpay/internal/presentation/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	baseLogger := zaplogger.New(
		observability.F("service", cfg.Service),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New("marketpay", "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: registry.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MGatewayRequests: registry.Counter(string(observability.MGatewayRequests),
			"Total number of gateway calls.", "operation", "outcome"),
		observability.MWebhookEvents: registry.Counter(string(observability.MWebhookEvents),
			"Total number of webhook events processed.", "type", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", prometheus.DefBuckets, "use_case"),
		observability.MHTTPRequestDuration: registry.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", prometheus.DefBuckets, "method", "route"),
		observability.MGatewayRequestDuration: registry.Histogram(string(observability.MGatewayRequestDuration),
			"Duration of gateway calls in seconds.", prometheus.DefBuckets, "operation"),
	}
	gauges := map[observability.MetricKey]observability.Gauge{
		observability.MCompensationOutstanding: registry.Gauge(string(observability.MCompensationOutstanding),
			"Failed payout debits whose reversing credit is still owed."),
	}
	tel := telemetry.New(oteltrace.New(cfg.Service), baseLogger, counters, histograms, gauges)

	store := memory.NewStore()
	idGenerator := id.NewUUIDGenerator()
	gatewayClient := gatewayhttp.New(gatewayhttp.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		SecretKey: cfg.Gateway.SecretKey,
		Timeout:   cfg.Gateway.Timeout,
	}, baseLogger, tel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(baseLogger, tel)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	checkoutUC := appcheckout.NewCreateOrderUseCase(store, gatewayClient, idGenerator, bus, tel)
	topupUC := appwallet.NewTopupUseCase(store, gatewayClient, idGenerator, tel)
	verifyTopupUC := appwallet.NewVerifyTopupUseCase(store, gatewayClient, bus, tel)
	balanceUC := appwallet.NewBalanceUseCase(store, tel)
	withdrawUC := apppayout.NewWithdrawUseCase(store, gatewayClient, idGenerator, bus, tel)
	couponUC := appcoupon.NewApplyUseCase(store, tel)
	webhookUC := appwebhook.NewApplyUseCase(store, bus, tel)

	notifWorker := notification.NewWorker(
		notify.NewLogNotifier(baseLogger),
		notify.NewLogMailer(baseLogger),
		baseLogger,
	)
	notifWorker.Register(bus)

	sweeper := reconcile.NewSweeper(store, gatewayClient, webhookUC,
		cfg.Sweep.Interval, cfg.Sweep.StuckAge, tel)

	handler := httppresentation.NewHandler(httppresentation.Config{
		Checkout:      checkoutUC,
		Topup:         topupUC,
		VerifyTopup:   verifyTopupUC,
		Balance:       balanceUC,
		Withdraw:      withdrawUC,
		Coupon:        couponUC,
		Webhook:       webhookUC,
		Store:         store,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Logger:        baseLogger,
		Telemetry:     tel,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		baseLogger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		baseLogger.Error("server_error", observability.F("error", err.Error()))
		os.Exit(1)
	}
	baseLogger.Info("server_stopped")
}
