package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appcart "github.com/henoc97/ecommerce-backend-sub001/internal/application/cart"
	appcheckout "github.com/henoc97/ecommerce-backend-sub001/internal/application/checkout"
	apppayment "github.com/henoc97/ecommerce-backend-sub001/internal/application/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/config"
	domcart "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"
	dompayment "github.com/henoc97/ecommerce-backend-sub001/internal/domain/payment"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/cache"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/id"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/lock"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/memory"
	infraobs "github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/observability"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/observability/oteltrace"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/observability/prometrics"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/observability/zaplogger"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/outbox"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/payment/gateway"
	"github.com/henoc97/ecommerce-backend-sub001/internal/infrastructure/postgres"
	"github.com/henoc97/ecommerce-backend-sub001/internal/pkg/logging"
	httppresentation "github.com/henoc97/ecommerce-backend-sub001/internal/presentation/http"
	workerpresentation "github.com/henoc97/ecommerce-backend-sub001/internal/presentation/worker"
)

// cartStore is what the cart use cases need from persistence.
type cartStore interface {
	domcart.ItemStore
	domcart.VariantLookup
	domcart.AggregateStore
	domcart.Transactor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	systemLogger := logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID)

	registry := prometrics.New("", "", prometheus.DefaultRegisterer)
	counters, histograms := prometrics.Standard(registry)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName), zaplogger.New(baseLogger), counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var healthChecks []httppresentation.Option

	// Persistence: postgres when configured, otherwise an in-memory store with demo data.
	var store cartStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			systemLogger.Fatal("postgres_open_failed", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		if err := pg.Migrate(); err != nil {
			systemLogger.Fatal("postgres_migrate_failed", zap.Error(err))
		}
		store = pg
		healthChecks = append(healthChecks, httppresentation.WithHealthCheck("postgres", pg.Ping))
		systemLogger.Info("cart_store_selected", zap.String("store", "postgres"))
	} else {
		mem := memory.NewCartRepository()
		seedDemoData(ctx, mem, systemLogger)
		store = mem
		systemLogger.Info("cart_store_selected", zap.String("store", "memory"))
	}

	// Per-cart lock and read cache: redis when configured, otherwise in-process.
	var (
		locker    domcart.Locker = lock.NewKeyed()
		cartCache domcart.Cache
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		locker = lock.NewRedis(rdb, tel.Logger())
		cartCache = cache.NewRedisCache(rdb)
		healthChecks = append(healthChecks, httppresentation.WithHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		systemLogger.Info("cart_lock_selected", zap.String("lock", "redis"), zap.String("addr", cfg.RedisAddr))
	}

	// In-memory event bus; every handler runs inside an event span with its own logger.
	bus := outbox.NewBus(tel.Logger(), outbox.WithMiddleware(workerpresentation.EventMiddleware(tel)))

	if cartCache != nil {
		appcart.NewCacheWorker(bus, cartCache, tel).Start()
	}

	if len(cfg.KafkaBrokers) > 0 {
		forwarder := outbox.NewKafkaForwarder(outbox.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), tel)
		forwarder.Register(bus,
			domcart.CartTotalsRecomputedEvent{}.EventName(),
			dompayment.PaymentProcessedEvent{}.EventName(),
			dompayment.PaymentRefundedEvent{}.EventName(),
		)
		defer func() { _ = forwarder.Close() }()
		systemLogger.Info("kafka_forwarding_enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	bus.Start(ctx)

	paymentGateway, initResult := gateway.New(gateway.Config{
		Secret:          cfg.Payment.ProviderSecret,
		ReturnURL:       cfg.Payment.ReturnURL,
		Timeout:         cfg.Payment.ProviderTimeout,
		SimulationDelay: cfg.Payment.SimulationDelay,
	}, tel)
	if initResult.Simulated() {
		if cfg.Payment.RequireLive {
			systemLogger.Fatal("payment_gateway_live_required",
				zap.String("reason", initResult.Reason),
				zap.Error(initResult.Err),
			)
		}
		systemLogger.Warn("payment_gateway_simulation_mode",
			zap.String("reason", initResult.Reason),
			zap.Error(initResult.Err),
		)
	} else {
		systemLogger.Info("payment_gateway_selected", zap.String("mode", string(initResult.Mode)))
	}

	deps := appcart.Dependencies{
		Items:     store,
		Variants:  store,
		Carts:     store,
		Locker:    locker,
		Publisher: bus,
		Tx:        store,
	}
	processPayment := apppayment.NewProcessPaymentUseCase(paymentGateway, bus, tel)

	handler := httppresentation.NewHandler(
		httppresentation.CartUseCases{
			AddItem:        appcart.NewAddItemUseCase(deps, tel),
			UpdateQuantity: appcart.NewUpdateItemQuantityUseCase(deps, tel),
			RemoveItem:     appcart.NewRemoveItemUseCase(deps, tel),
			GetCart:        appcart.NewGetCartUseCase(store, store, cartCache, tel),
		},
		httppresentation.PaymentUseCases{
			Process: processPayment,
			Refund:  apppayment.NewRefundPaymentUseCase(paymentGateway, bus, tel),
			Checkout: appcheckout.NewChargeCartUseCase(store, processPayment,
				id.NewUUIDGenerator("chk_"), cfg.Payment.DefaultCurrency, tel),
		},
		tel,
		healthChecks...,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		systemLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error",
				zap.Error(err),
			)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		systemLogger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
}

// demoStore is implemented by both cart repositories.
type demoStore interface {
	CreateCart(ctx context.Context) (*domcart.Cart, error)
	PutVariant(ctx context.Context, v domcart.Variant) error
}

// seedDemoData gives the in-memory store an empty cart and a few variants to play with.
func seedDemoData(ctx context.Context, store demoStore, log *zap.Logger) {
	variants := []domcart.Variant{
		{ID: 1, Stock: 20, Price: decimal.RequireFromString("10.00")},
		{ID: 2, Stock: 5, Price: decimal.RequireFromString("24.99")},
		{ID: 3, Stock: 0, Price: decimal.RequireFromString("3.50")},
	}
	for _, v := range variants {
		if err := store.PutVariant(ctx, v); err != nil {
			log.Error("demo_seed_failed", zap.Error(err))
			return
		}
	}
	c, err := store.CreateCart(ctx)
	if err != nil {
		log.Error("demo_seed_failed", zap.Error(err))
		return
	}
	log.Info("demo_data_seeded",
		zap.Int64("cart_id", c.ID),
		zap.Int("variants", len(variants)),
	)
}
