package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

// Storefront is the session facade the API serves.
type Storefront interface {
	controllers.CartService
	controllers.CheckoutService
	controllers.AccountService
	controllers.Pinger
}

// Deps carries everything the router wires. Idempotency and RateLimits are
// optional; leave them nil when running without redis.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Storefront  Storefront
	Catalog     controllers.Catalog
	Idempotency pkgredis.IdempotencyStore
	RateLimits  middleware.WindowLimiter
	Metrics     http.Handler
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	svc, catalog := d.Storefront, d.Catalog

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, svc, logg))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	loginPolicy := middleware.NewRateLimitPolicy("login", cfg.HTTP.AuthLimitWindow, cfg.HTTP.AuthLimitIP, cfg.HTTP.AuthLimitEmail)
	registerPolicy := middleware.NewRateLimitPolicy("register", cfg.HTTP.AuthLimitWindow, cfg.HTTP.AuthLimitIP, cfg.HTTP.AuthLimitEmail)

	r.Route("/api/v1", func(r chi.Router) {
		// catalog and tracking by code are stateless
		r.Get("/products", controllers.ProductsList(catalog, logg))
		r.Get("/products/featured", controllers.ProductsFeatured(catalog, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(catalog, logg))
		r.Get("/categories", controllers.CategoriesList(catalog, logg))
		r.Get("/tracking/{code}", controllers.TrackingByCode(catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Session(logg, cfg.Storage.SessionTTL, cfg.HTTP.SecureCookies),
				middleware.Notices(),
			)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svc, logg))
				r.Delete("/", controllers.CartClear(svc, logg))
				r.Post("/items", controllers.CartAddItem(svc, logg))
				r.Put("/items/{productId}", controllers.CartUpdateItem(svc, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(svc, logg))
				r.Post("/coupon", controllers.CartApplyCoupon(svc, logg))
				r.Delete("/coupon", controllers.CartRemoveCoupon(svc, logg))
				r.Post("/sync", controllers.CartSync(svc, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", controllers.CheckoutFetch(svc, logg))
				r.Post("/begin", controllers.CheckoutBegin(svc, logg))
				r.With(middleware.Idempotent(d.Idempotency, middleware.OrderSubmitPolicy, logg)).Post("/submit", controllers.CheckoutSubmit(svc, logg))
				r.With(middleware.Idempotent(d.Idempotency, middleware.PaymentPolicy, logg)).Post("/confirm-payment", controllers.CheckoutConfirmPayment(svc, logg))
				r.Post("/reset", controllers.CheckoutReset(svc, logg))
			})

			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.RateLimit(loginPolicy, d.RateLimits, logg)).Post("/login", controllers.AuthLogin(svc, logg))
				r.With(middleware.RateLimit(registerPolicy, d.RateLimits, logg), middleware.Idempotent(d.Idempotency, middleware.RegisterPolicy, logg)).Post("/register", controllers.AuthRegister(svc, logg))
				r.Post("/logout", controllers.AuthLogout(svc, logg))
				r.Get("/me", controllers.AuthMe(svc, logg))
			})

			r.Get("/orders", controllers.OrdersList(svc, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(svc, logg))
			r.Get("/tracking/order/{orderId}", controllers.TrackingByOrder(svc, logg))
		})
	})

	return r
}
