package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/controllers"
	cartcontrollers "github.com/Thangvh29/WEB-tmdt-sub001/api/controllers/cart"
	ordercontrollers "github.com/Thangvh29/WEB-tmdt-sub001/api/controllers/orders"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/middleware"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/cart"
	checkoutsvc "github.com/Thangvh29/WEB-tmdt-sub001/internal/checkout"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	pkgredis "github.com/Thangvh29/WEB-tmdt-sub001/pkg/redis"
)

// RedisStore is the subset of the redis client the HTTP layer needs for
// idempotency replay and per-user checkout throttling.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Dependencies groups what NewRouter wires into handlers.
type Dependencies struct {
	Config     *config.Config
	Logger     *logger.Logger
	Redis      RedisStore
	HealthDeps map[string]controllers.Pinger
	Metrics    *metrics.HTTPMetrics
	Authorizer authz.Authorizer
	Products   product.Service
	Cart       cart.Service
	Checkout   checkoutsvc.Service
	Orders     orders.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = authz.New()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.NewClientLimiter(cfg.HTTPRateLimit.RequestsPerSecond, cfg.HTTPRateLimit.Burst).Middleware(logg),
		deps.Metrics.Middleware,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.HealthDeps))
	})
	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, deps.Metrics.Handler())
	}

	idempotency := middleware.Idempotency(deps.Redis, logg)
	checkoutLimit := middleware.CheckoutRateLimit(deps.Redis, cfg.Checkout.RateLimitPerWindow, cfg.Checkout.RateLimitWindow, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/products", controllers.ListProducts(deps.Products, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartGet(deps.Cart, logg))
				r.Delete("/", cartcontrollers.CartClear(deps.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(deps.Cart, logg))
				r.Patch("/items/{key}", cartcontrollers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{key}", cartcontrollers.CartRemoveItem(deps.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(checkoutLimit, idempotency).Post("/", controllers.Checkout(deps.Checkout, logg))
				r.Get("/", ordercontrollers.List(deps.Orders, authorizer, logg))
				r.Get("/history", ordercontrollers.History(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.With(idempotency).Patch("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
				r.Patch("/{orderId}/customer", ordercontrollers.UpdateCustomer(deps.Orders, logg))
				r.With(idempotency).Patch("/{orderId}/payment", ordercontrollers.UpdatePayment(deps.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireBackOffice(logg))
				r.Post("/products", controllers.AdminCreateProduct(deps.Products, logg))
				r.Put("/products/{productId}", controllers.AdminUpdateProduct(deps.Products, logg))
				r.Patch("/products/{productId}/stock", controllers.AdminAdjustStock(deps.Products, logg))
				r.Patch("/products/{productId}/approval", controllers.AdminSetApproval(deps.Products, logg))
				r.Patch("/products/{productId}/active", controllers.AdminSetActive(deps.Products, logg))
				r.Get("/products/{productId}/stock-movements", controllers.AdminListStockMovements(deps.Products, logg))
			})
		})
	})

	return r
}
