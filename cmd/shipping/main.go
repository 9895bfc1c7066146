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
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/metrics"
	"github.com/ariefcatur/go-order-fulfillment/internal/observability"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/ariefcatur/go-order-fulfillment/internal/shipping"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-shipping"

	logger, err := observability.NewLogger(cfg.LogLevel, service, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: cfg.Version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error("tracing setup failed, continuing without export", zap.Error(err))
	}

	// Redis: dedup is required here, a duplicate registration books a second parcel.
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		logger.Fatal("redis", zap.Error(err))
	}

	sender := shipping.Party{
		Name:    cfg.SenderName,
		Phone:   cfg.SenderPhone,
		Address: cfg.SenderAddress,
	}
	carrier := shipping.NewParcelCarrier(shipping.NewStore(), logger)
	reg := shipping.NewRegistrar(carrier, redisx.NewDedup(rdb, "shipping"), sender, logger)

	topics := []string{orders.TopicOrderCreated, orders.TopicOrderCanceled}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ShippingGroup, topics, cfg.ShippingWorkers, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: cfg.ShippingMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("shipping consumer started",
			zap.String("group", cfg.ShippingGroup),
			zap.Strings("topics", topics),
			zap.Int("workers", cfg.ShippingWorkers),
		)
		return cons.Start(gctx, reg.Handle)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}

	if shutdownTracing != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}
}
