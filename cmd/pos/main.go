package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/idpuniv/livewire/internal/config"
	deliveryhttp "github.com/idpuniv/livewire/internal/delivery/http"
	"github.com/idpuniv/livewire/internal/idempotency"
	"github.com/idpuniv/livewire/internal/messaging"
	"github.com/idpuniv/livewire/internal/messaging/kafka"
	wmbroker "github.com/idpuniv/livewire/internal/messaging/watermill"
	"github.com/idpuniv/livewire/internal/repository/sqlstore"
	"github.com/idpuniv/livewire/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Logger())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// --- Database ---
	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer store.Close()

	products := sqlstore.NewProductRepository(store)
	carts := sqlstore.NewCartRepository(store)
	orders := sqlstore.NewOrderRepository(store)
	payments := sqlstore.NewPaymentRepository(store)
	ledger := sqlstore.NewStockLedger(store)

	if cfg.SeedProducts {
		if err := products.Seed(ctx, sqlstore.DemoProducts()); err != nil {
			return fmt.Errorf("failed to seed products: %w", err)
		}
	}

	// --- Broker ---
	broker, err := newBroker(cfg)
	if err != nil {
		return err
	}
	defer broker.Close()

	// --- Idempotency ---
	var guard idempotency.Guard = idempotency.Nop{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		guard = idempotency.NewRedisGuard(rdb, cfg.IdempotencyTTL)
	}

	// --- Services ---
	dispatcher := service.NewDispatcher(broker)
	orderSvc := service.NewOrderService(store, orders, carts, products)
	paymentSvc := service.NewPaymentService(store, orders, payments)
	stockSvc := service.NewStockService(store, products, ledger)

	handler := deliveryhttp.NewHandler(deliveryhttp.Services{
		Catalog:  service.NewCatalogService(products),
		Carts:    service.NewCartService(store, carts, products),
		Orders:   orderSvc,
		Payments: paymentSvc,
		Checkout: service.NewCheckoutService(store, carts, orderSvc, paymentSvc),
		Events:   dispatcher,
		Guard:    guard,
		Ping:     store.PingContext,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           deliveryhttp.EnableCORS(deliveryhttp.RateLimit(cfg.RateLimit, cfg.RateBurst)(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// --- Start everything ---
	g, ctx := errgroup.WithContext(ctx)

	// Consumer: payments.completed → StockService (decrements stock, publishes products.updated)
	g.Go(func() error {
		broker.Consume(ctx, service.TopicPaymentCompleted, cfg.KafkaGroupID, stockSvc.PaymentCompletedHandler(dispatcher))
		return nil
	})

	g.Go(func() error {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr, "db", cfg.DBDriver, "broker", cfg.Broker)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newBroker(cfg config.Config) (messaging.Broker, error) {
	switch cfg.Broker {
	case config.BrokerKafka:
		return kafka.NewKafkaBroker(cfg.KafkaBrokers), nil
	case config.BrokerWatermillKafka:
		b, err := wmbroker.NewKafka(cfg.KafkaBrokers, watermill.NewSlogLogger(slog.Default()))
		if err != nil {
			return nil, fmt.Errorf("failed to init watermill kafka: %w", err)
		}
		return b, nil
	default:
		return wmbroker.NewInMemory(watermill.NewSlogLogger(slog.Default())), nil
	}
}
