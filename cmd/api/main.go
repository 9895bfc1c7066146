package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/notify"
	"github.com/ariefcatur/go-order-fulfillment/internal/observability"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/pricing"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/ariefcatur/go-order-fulfillment/internal/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error("tracing setup failed, continuing without export", zap.Error(err))
	}

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case "memory":
		mem := orders.NewMemoryStore()
		mem.LockTimeout = cfg.LockTimeout
		seedDemo(mem)
		store = mem
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolConfig{})
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("db schema", zap.Error(err))
		}
		store = &orders.PGStore{DB: db, LockTimeout: cfg.LockTimeout}
	}

	// Redis caches are optional; without them the store answers directly.
	var (
		totals validation.DailyTotals
		rec    fulfillment.TotalsRecorder
		idem   fulfillment.Idempotency
	)
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Warn("redis unavailable, caches disabled", zap.Error(err))
	} else {
		dt := redisx.NewDailyTotals(rdb, logger)
		totals, rec = dt, dt
		idem = redisx.NewIdempotency(rdb)
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.ProducerBuffer, logger)
	prodCtx, prodCancel := context.WithCancel(context.Background())
	defer prodCancel()
	prod.Start(prodCtx)

	// Pricing
	reg := pricing.Default()
	if cfg.PricingFile != "" {
		if reg, err = pricing.LoadFile(cfg.PricingFile); err != nil {
			logger.Fatal("pricing", zap.Error(err))
		}
	}

	limits := validation.DefaultLimits()
	limits.DailyLimit = cfg.DailyLimit
	limits.MaxQuantity = cfg.MaxQuantity
	limits.MinOrderAmount = cfg.MinOrderAmount
	limits.MaxOrderAmount = cfg.MaxOrderAmount
	limits.Maintenance = validation.Window{Start: cfg.MaintenanceStart, End: cfg.MaintenanceEnd}
	limits.StrictMethods = cfg.StrictPayMethods

	inv := inventory.NewStore(logger)
	gw := payment.NewGuarded(payment.NewSimulator(),
		payment.NewCircuitBreaker(cfg.BreakerMaxFails, cfg.BreakerResetAfter), logger)

	svc := fulfillment.NewService(fulfillment.Deps{
		Store:       store,
		Chain:       validation.Standard(logger, limits, totals, time.Now),
		Regular:     fulfillment.NewRegular(inv, reg, gw, logger),
		Premium:     fulfillment.NewPremium(inv, reg, gw, logger),
		Tier:        fulfillment.TierSelector{Modulus: cfg.PremiumModulus},
		Inventory:   inv,
		Gateway:     gw,
		Notifier:    notify.NewKafka(prod, cfg.ServiceName, logger),
		Idempotency: idem,
		Totals:      rec,
		MaxRetries:  cfg.MaxRetries,
		Backoff:     cfg.RetryBackoff,
	}, logger)

	router := httpx.NewRouter(logger)
	oh := &httpx.OrdersHandler{Service: svc, Logger: logger}
	oh.Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
	}

	prod.Close()      // flush queued events
	prod.WaitClosed() // then stop
	if shutdownTracing != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}
}

// seedDemo gives the in-memory store something to order.
func seedDemo(s *orders.MemoryStore) {
	s.PutMember(orders.Member{ID: 1, Email: "buyer@example.com", Name: "Buyer", Role: orders.RoleCustomer})
	s.PutMember(orders.Member{ID: 10, Email: "vip@example.com", Name: "VIP", Role: orders.RoleCustomer})
	s.PutProduct(orders.Product{ID: 1, Name: "Keyboard", Price: 10000, Stock: 50, Status: orders.ProductActive})
	s.PutProduct(orders.Product{ID: 2, Name: "Monitor", Price: 250000, Stock: 5, Status: orders.ProductActive})
	s.PutProduct(orders.Product{ID: 3, Name: "Cable", Price: 2000, Stock: 200, Status: orders.ProductActive})
}
