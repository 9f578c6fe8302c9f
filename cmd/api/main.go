package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/agrimarket/agrimarket-backend/api/routes"
	"github.com/agrimarket/agrimarket-backend/internal/cart"
	"github.com/agrimarket/agrimarket-backend/internal/ledger"
	"github.com/agrimarket/agrimarket-backend/internal/orders"
	"github.com/agrimarket/agrimarket-backend/internal/payments"
	"github.com/agrimarket/agrimarket-backend/internal/products"
	"github.com/agrimarket/agrimarket-backend/internal/users"
	paystackwebhook "github.com/agrimarket/agrimarket-backend/internal/webhooks/paystack"
	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/db"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/migrate"
	"github.com/agrimarket/agrimarket-backend/pkg/outbox"
	"github.com/agrimarket/agrimarket-backend/pkg/paystack"
	"github.com/agrimarket/agrimarket-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gateway, err := paystack.NewClient(cfg.Paystack, logg)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	productsRepo := products.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, productsRepo)
	if err != nil {
		return err
	}
	productSvc, err := products.NewService(productsRepo)
	if err != nil {
		return err
	}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:              payments.NewRepository(conn),
		Users:             usersRepo,
		Gateway:           gateway,
		TransactionRunner: dbClient,
		CallbackURL:       cfg.Paystack.CallbackURL(),
		Metrics:           checkoutMetrics,
		Logger:            logg,
	})
	if err != nil {
		return err
	}
	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:              orders.NewRepository(conn),
		Carts:             cartRepo,
		Users:             usersRepo,
		Payments:          paymentsSvc,
		Outbox:            outboxSvc,
		TransactionRunner: dbClient,
		Metrics:           checkoutMetrics,
		Logger:            logg,
	})
	if err != nil {
		return err
	}
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return err
	}
	webhookSvc, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Payments:          payments.NewRepository(conn),
		Ledger:            ledgerSvc,
		Outbox:            outboxSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return err
	}
	webhookGuard, err := paystackwebhook.NewIdempotencyGuard(redisClient, cfg.Checkout.WebhookGuardTTL, paystackwebhook.Provider)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:              dbClient,
			Store:           redisClient,
			Carts:           cartSvc,
			Orders:          ordersSvc,
			Payments:        paymentsSvc,
			FarmerProducts:  productSvc,
			FarmerSales:     ledgerSvc,
			PaystackWebhook: webhookSvc,
			WebhookGuard:    webhookGuard,
			HTTPMetrics:     metrics.NewHTTPMetrics(registry),
			CheckoutMetrics: checkoutMetrics,
			Gatherer:        registry,
		}),
	}

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	logg.Info(logCtx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(logCtx, "shutting down api server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
