package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-pos/internal/cache"
	"github.com/noah-isme/toko-pos/internal/cart"
	"github.com/noah-isme/toko-pos/internal/catalog"
	"github.com/noah-isme/toko-pos/internal/checkout"
	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/coupon"
	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/health"
	"github.com/noah-isme/toko-pos/internal/lock"
	"github.com/noah-isme/toko-pos/internal/notify"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/order"
	"github.com/noah-isme/toko-pos/internal/pricing"
	"github.com/noah-isme/toko-pos/internal/ratelimit"
	"github.com/noah-isme/toko-pos/internal/register"
	"github.com/noah-isme/toko-pos/internal/repo"
	"github.com/noah-isme/toko-pos/internal/resilience"
	"github.com/noah-isme/toko-pos/internal/security"
	"github.com/noah-isme/toko-pos/internal/session"
	"github.com/noah-isme/toko-pos/internal/settings"
)

// App is the assembled HTTP API.
type App struct {
	Handler http.Handler
	Health  *health.Handler
	Metrics *obs.DomainMetrics
}

// New builds every service on top of d and mounts the routes.
func New(d Dependencies) (*App, error) {
	cfg := d.Config
	if cfg == nil || d.Redis == nil {
		return nil, errors.New("app: config and redis are required")
	}
	pricing.UsePlainJSONNumbers()
	log := d.Log

	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Registry != nil {
		reg, gatherer = d.Registry, d.Registry
	}
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, reg)
	metrics := obs.NewDomainMetrics(cfg.MetricsNamespace, reg)

	orders := repo.Orders{DB: d.DB}
	catalogSvc := &catalog.Service{
		Store: repo.Catalog{DB: d.DB},
		Cache: cache.NewJSON(d.Redis, "catalog:", cfg.CatalogTTL),
		Log:   log,
	}
	settingsProvider := &settings.Provider{
		Source:   repo.Settings{DB: d.DB},
		Defaults: settings.FromConfig(cfg.Store),
		Cache:    cache.NewJSON(d.Redis, "settings:", cfg.SettingsTTL),
		Log:      log,
	}
	taskBreaker := resilience.NewBreaker(cfg.Breaker.MinRequests, cfg.Breaker.FailureRatio, cfg.Breaker.OpenFor)
	taskBreaker.Target = "task-queue"
	taskBreaker.Log = log
	taskBreaker.OnTransition = func(target string, from, to resilience.State) {
		metrics.BreakerTransition(target, from.String(), to.String())
	}
	bus := &events.Bus{
		Store: repo.Events{DB: d.DB},
		Notifiers: []events.Notifier{
			notify.Enqueuer{Client: d.Tasks, Queue: cfg.WorkerQueue, MaxRetry: cfg.TaskMaxRetry, Breaker: taskBreaker},
		},
		Log: log,
	}
	locker := lock.Locker{R: d.Redis, Prefix: "lock:", RetryBackoff: 25 * time.Millisecond}

	cartSvc := &cart.Service{
		Sessions: session.Store{R: d.Redis, Prefix: "cart:", TTL: cfg.CartTTL},
		Catalog:  catalogSvc,
		Coupons:  &coupon.Service{Store: repo.Coupons{DB: d.DB}, Log: log},
		Settings: settingsProvider,
		Metrics:  metrics,
		Log:      log,
	}
	checkoutSvc := &checkout.Service{
		Carts:    cartSvc,
		Settings: settingsProvider,
		Orders:   orders,
		Locker:   locker,
		LockTTL:  cfg.CheckoutLock,
		Events:   bus,
		Metrics:  metrics,
		Log:      log,
	}
	registerSvc := &register.Service{
		Sessions: session.Store{R: d.Redis, Prefix: "register:", TTL: cfg.RegisterTTL},
		Catalog:  catalogSvc,
		Settings: settingsProvider,
		Orders:   orders,
		Locker:   locker,
		LockTTL:  cfg.RegisterLock,
		Events:   bus,
		Metrics:  metrics,
		Log:      log,
	}

	catalogHandler := &catalog.Handler{Svc: catalogSvc, Currency: cfg.Store.CurrencySymbol}
	cartHandler := &cart.Handler{Svc: cartSvc}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}
	registerHandler := &register.Handler{Svc: registerSvc}
	orderHandler := &order.Handler{Orders: orders}
	healthHandler := &health.Handler{Checks: d.Checks, Timeout: 2 * time.Second}

	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	couponLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: d.Redis, Prefix: "rl:"},
		Config:  ratelimit.Config{Key: ratelimit.BySession("coupon"), Window: cfg.CouponWindow, Max: cfg.CouponAttempts},
		OnError: func(err error) {
			log.Warn().Err(err).Msg("coupon rate limiter unavailable")
		},
		OnReject: func(key string) {
			metrics.RateLimited("coupon")
			log.Warn().Str("key", key).Msg("coupon attempts rate limited")
		},
	}
	perIP, err := globalLimit(d.LimiterStore, cfg.RateLimit, log, func() { metrics.RateLimited("global") })
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.SpanAttributes)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: log}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", common.HeaderSessionID, common.HeaderDeviceID},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(perIP)

		v.Get("/catalog/products/{id}/price", catalogHandler.Price)
		v.Get("/catalog/products/slug/{slug}", catalogHandler.BySlug)

		v.Route("/cart", func(c chi.Router) {
			c.Use(common.RequireSession)
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/items", cartHandler.AddItem)
				g.Patch("/items/{key}", cartHandler.UpdateItem)
				g.Delete("/items/{key}", cartHandler.RemoveItem)
				g.With(couponLimit.Middleware).Post("/coupon", cartHandler.ApplyCoupon)
				g.Delete("/coupon", cartHandler.RemoveCoupon)
			})
		})

		v.With(common.RequireSession, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Route("/pos", func(p chi.Router) {
			p.Use(idem.Middleware)
			registerHandler.Routes(p)
		})

		v.Get("/orders/{id}", orderHandler.Get)
	})

	return &App{
		Handler: otelhttp.NewHandler(r, "toko-pos"),
		Health:  healthHandler,
		Metrics: metrics,
	}, nil
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}
