package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
	"github.com/pr-poehali-dev/zdrav-project/internal/service"
	"github.com/pr-poehali-dev/zdrav-project/internal/view"
	"github.com/pr-poehali-dev/zdrav-project/pkg/health"
	"github.com/pr-poehali-dev/zdrav-project/pkg/middleware"
)

const serviceName = "storefront"

// catalogMaxAge is how long clients may cache the catalog endpoints.
const catalogMaxAge = 300

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	Session     middleware.SessionConfig
	CORS        middleware.CORSConfig
	PprofCIDRs  []string
	Timeout     time.Duration
	RateLimiter *middleware.RateLimiter
}

// NewRouter creates a chi router with the storefront page, the JSON API and
// the operational endpoints registered.
func NewRouter(
	svc *service.StorefrontService,
	renderer *view.Renderer,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.Timeout))
	r.Use(middleware.RequestLogging(logger, "/health/live", "/health/ready", "/metrics"))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Mutating routes share the per-IP rate limit.
	limited := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limited = cfg.RateLimiter.Handler
	}

	pages := NewPageHandler(svc, renderer, logger)
	api := NewAPIHandler(svc, logger)

	// Everything below is bound to the browser session.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session))
		r.Use(middleware.RequestLogger(logger))
		r.Use(LimitBody)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Get("/", pages.Index)

			r.Group(func(r chi.Router) {
				r.Use(limited)

				r.Post("/cart/items/{productId}", pages.AddItem)
				r.Post("/cart/items/{productId}/increment", pages.Increment)
				r.Post("/cart/items/{productId}/decrement", pages.Decrement)
				r.Post("/cart/items/{productId}/remove", pages.RemoveItem)

				r.Post("/cart/open", pages.Flow(domain.EventOpenCart))
				r.Post("/cart/close", pages.Flow(domain.EventCloseCart))
				r.Post("/cart/back", pages.Flow(domain.EventBack))
				r.Post("/cart/checkout", pages.Flow(domain.EventProceedToCheckout))

				r.Post("/checkout", pages.Checkout)
			})
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.CORS(cfg.CORS))
			r.Use(ContentTypeJSON)

			r.Group(func(r chi.Router) {
				r.Use(middleware.CacheControl(catalogMaxAge))
				r.Get("/products", api.ListProducts)
				r.Get("/products/{id}", api.GetProduct)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)

				r.Get("/cart", api.GetCart)
				r.Get("/notifications", api.Notifications)

				r.Group(func(r chi.Router) {
					r.Use(limited)

					r.Post("/cart/items", api.AddItem)
					r.Patch("/cart/items/{productId}", api.UpdateItem)
					r.Delete("/cart/items/{productId}", api.RemoveItem)

					r.Put("/checkout/form", api.PutForm)
					r.Post("/checkout", api.Submit)
					r.Post("/checkout/{event}", api.FireEvent)
				})
			})
		})
	})

	return r
}
