package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agrimarket/agrimarket-backend/api/controllers"
	webhookcontrollers "github.com/agrimarket/agrimarket-backend/api/controllers/webhooks"
	"github.com/agrimarket/agrimarket-backend/api/middleware"
	"github.com/agrimarket/agrimarket-backend/internal/cart"
	"github.com/agrimarket/agrimarket-backend/internal/orders"
	paystackwebhook "github.com/agrimarket/agrimarket-backend/internal/webhooks/paystack"
	"github.com/agrimarket/agrimarket-backend/pkg/config"
	"github.com/agrimarket/agrimarket-backend/pkg/enums"
	"github.com/agrimarket/agrimarket-backend/pkg/logger"
	"github.com/agrimarket/agrimarket-backend/pkg/metrics"
	"github.com/agrimarket/agrimarket-backend/pkg/redis"
)

// Store is the Redis surface the HTTP layer needs. *redis.Client satisfies it.
type Store interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Dependencies carries everything NewRouter mounts. Nil services make their
// handlers answer 500; a nil Store disables idempotency and rate limiting.
type Dependencies struct {
	DB    controllers.Pinger
	Store Store

	Carts           cart.Service
	Orders          orders.Service
	Payments        controllers.PaymentReinitiator
	FarmerProducts  controllers.FarmerProductService
	FarmerSales     controllers.FarmerSalesService
	PaystackWebhook webhookcontrollers.PaystackWebhookService
	WebhookGuard    *paystackwebhook.IdempotencyGuard

	HTTPMetrics     *metrics.HTTPMetrics
	CheckoutMetrics *metrics.CheckoutMetrics
	Gatherer        prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimiddleware.StripSlashes,
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.CORS),
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["postgres"] = deps.DB
	}
	var (
		idempotencyStore redis.IdempotencyStore
		limiter          rateLimitStore
	)
	if deps.Store != nil {
		pingers["redis"] = deps.Store
		idempotencyStore = deps.Store
		limiter = deps.Store
	}
	var guard webhookcontrollers.PaystackWebhookGuard
	if deps.WebhookGuard != nil {
		guard = deps.WebhookGuard
	}

	idempotent := middleware.Idempotency(idempotencyStore, cfg.Checkout.IdempotencyTTL, logg)
	orderLimit := middleware.UserRateLimit(
		middleware.NewRateLimitPolicy("order_create", cfg.Checkout.OrderRateLimit, cfg.Checkout.OrderRateLimitWindow),
		limiter,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Post("/api/payments/webhook", webhookcontrollers.PaystackWebhook(
		deps.PaystackWebhook,
		cfg.Paystack.SigningSecret(),
		guard,
		deps.CheckoutMetrics,
		logg,
	))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleBuyer, logg))

			r.Route("/api/cart", func(r chi.Router) {
				r.Get("/", controllers.CartList(deps.Carts, logg))
				r.Post("/add", controllers.CartAdd(deps.Carts, logg))
				r.Put("/update/{id}", controllers.CartUpdate(deps.Carts, logg))
				r.Delete("/remove/{id}", controllers.CartRemove(deps.Carts, logg))
			})

			r.Route("/api/orders", func(r chi.Router) {
				r.Get("/", controllers.OrderList(deps.Orders, logg))
				r.Get("/{id}", controllers.OrderDetail(deps.Orders, logg))
				r.With(orderLimit, idempotent).Post("/create", controllers.OrderCreate(deps.Orders, logg))
				r.With(idempotent).Post("/checkout/{id}", controllers.OrderCheckout(deps.Payments, logg))
			})
		})

		r.Route("/api/farmer", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleFarmer, logg))
			r.Get("/products", controllers.FarmerProductList(deps.FarmerProducts, logg))
			r.Delete("/products/{id}", controllers.FarmerProductDelete(deps.FarmerProducts, logg))
			r.Get("/sales", controllers.FarmerSales(deps.FarmerSales, logg))
		})
	})

	return r
}

type rateLimitStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}
