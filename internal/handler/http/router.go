package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig carries the HTTP-level settings of the router.
type RouterConfig struct {
	ServiceName string
	CORS        middleware.CORSConfig

	// PublicWishlistLookup serves /wishlist/by-email without authentication.
	PublicWishlistLookup bool
	// PublicRateLimiter throttles unauthenticated endpoints per client IP.
	PublicRateLimiter *middleware.RateLimiter

	CatalogCacheMaxAge int
	PprofAllowedCIDRs  []string

	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	accounts AccountService,
	catalog CatalogService,
	wishlists WishlistService,
	validate middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.PrometheusMetrics(cfg.Metrics))
	}
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	authenticate := middleware.Auth(validate)
	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.PublicRateLimiter != nil {
		throttle = cfg.PublicRateLimiter.Middleware
	}

	// Account endpoints
	authHandler := NewAuthHandler(accounts, logger)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		r.Group(func(r chi.Router) {
			r.Use(throttle)
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/token/refresh", authHandler.RefreshToken)
			r.Post("/password-reset", authHandler.RequestPasswordReset)
			r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
		})

		r.With(authenticate).Post("/logout", authHandler.Logout)
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.NoStore)

		r.Get("/me", authHandler.Me)
	})

	// Catalog endpoints: public reads, admin writes.
	catalogHandler := NewCatalogHandler(catalog, logger)
	admin := chi.Chain(authenticate, middleware.RequireRole(domain.RoleAdmin))

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.CacheControl(cfg.CatalogCacheMaxAge)).Get("/", catalogHandler.ListProducts)
		r.With(middleware.CacheControl(cfg.CatalogCacheMaxAge)).Get("/{id}", catalogHandler.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(admin...)
			r.Post("/", catalogHandler.CreateProduct)
			r.Put("/{id}", catalogHandler.UpdateProduct)
			r.Patch("/{id}", catalogHandler.UpdateProduct)
			r.Delete("/{id}", catalogHandler.DeleteProduct)
		})
	})

	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(middleware.CacheControl(cfg.CatalogCacheMaxAge)).Get("/", catalogHandler.ListCategories)
		r.With(middleware.CacheControl(cfg.CatalogCacheMaxAge)).Get("/{id}", catalogHandler.GetCategory)

		r.Group(func(r chi.Router) {
			r.Use(admin...)
			r.Post("/", catalogHandler.CreateCategory)
			r.Put("/{id}", catalogHandler.UpdateCategory)
			r.Delete("/{id}", catalogHandler.DeleteCategory)
		})
	})

	// Wishlist endpoints
	wishlistHandler := NewWishlistHandler(wishlists, logger)
	r.Route("/api/v1/wishlist", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.NoStore)

		lookup := chi.Chain(throttle)
		if !cfg.PublicWishlistLookup {
			lookup = chi.Chain(throttle, authenticate)
		}
		r.With(lookup...).Get("/by-email/{email}", wishlistHandler.GetByOwnerEmail)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/", wishlistHandler.Get)
			r.Put("/", wishlistHandler.ReplaceProducts)
			r.Post("/products", wishlistHandler.AddProducts)
			r.Delete("/products/{productId}", wishlistHandler.RemoveProduct)
		})
	})

	return r
}
