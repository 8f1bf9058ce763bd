package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/checkout"
	"github.com/Zhima-Mochi/storefront/internal/config"
	"github.com/Zhima-Mochi/storefront/internal/httpapi"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/id"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/mongodb"
	obsinfra "github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/storefront/internal/infrastructure/redisx"
	"github.com/Zhima-Mochi/storefront/internal/notification"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"github.com/Zhima-Mochi/storefront/internal/razorpay"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New("storefront", "")
	counters := map[string]observability.Counter{
		observability.MCheckoutRequests:        registry.Counter(observability.MCheckoutRequests, "Total checkout operations.", "operation", "outcome"),
		observability.MHTTPRequests:            registry.Counter(observability.MHTTPRequests, "Total HTTP requests.", "method", "route", "status"),
		observability.MGatewayRequests:         registry.Counter(observability.MGatewayRequests, "Total payment gateway calls.", "endpoint", "outcome"),
		observability.MNotificationDispatches:  registry.Counter(observability.MNotificationDispatches, "Order confirmation dispatch attempts.", "outcome"),
		observability.MInventoryStockConflicts: registry.Counter(observability.MInventoryStockConflicts, "Checkouts aborted on insufficient stock.", "product_id"),
	}
	histograms := map[string]observability.Histogram{
		observability.MCheckoutDuration:       registry.Histogram(observability.MCheckoutDuration, "Checkout operation duration in seconds.", prometheus.DefBuckets, "operation"),
		observability.MHTTPRequestDuration:    registry.Histogram(observability.MHTTPRequestDuration, "HTTP request duration in seconds.", prometheus.DefBuckets, "method", "route", "status"),
		observability.MGatewayRequestDuration: registry.Histogram(observability.MGatewayRequestDuration, "Payment gateway call duration in seconds.", prometheus.DefBuckets, "endpoint"),
	}
	tel := telemetry.New(obsinfra.New(cfg.ServiceName), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("mongodb_connect_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	db := mongoClient.Database(cfg.MongoDB)

	productRepo := mongodb.NewProductRepository(db)
	orderRepo := mongodb.NewOrderRepository(db)
	settingsRepo := mongodb.NewSettingsRepository(db)

	rdb := redisx.New(cfg.RedisAddr)
	defer func() { _ = rdb.Close() }()
	idemStore := redisx.NewIdempotencyStore(rdb)
	statusCache := redisx.NewStatusCache(rdb)

	creds := razorpay.EnvThenSettings(razorpay.Credentials{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
	}, settingsRepo)
	gateway := razorpay.NewClient(cfg.Razorpay.BaseURL, cfg.GatewayTimeout, creds, tel)

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	notifyWorker := notification.New(bus, notification.NewLogMailer(logger), tel)
	notifyWorker.Start()

	checkoutSvc := checkout.NewService(productRepo, orderRepo, gateway, bus, idemStore, id.NewUUIDGenerator(), tel)

	handler := httpapi.NewHandler(checkoutSvc, productRepo, orderRepo, statusCache, cfg.JWTSecret, tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}
