package app

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/toko-pos/internal/common"
	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/health"
	"github.com/noah-isme/toko-pos/internal/notify"
	"github.com/noah-isme/toko-pos/internal/repo"
)

// Dependencies enumerates the infrastructure the API is assembled from.
type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger
	DB     repo.TxDB
	Redis  redis.UniversalClient
	Tasks  notify.TaskClient
	// LimiterStore backs the global per-IP request limit. Nil disables it.
	LimiterStore limiter.Store
	Checks       map[string]health.Check
	// Registry receives all collectors. Nil uses the default registry.
	Registry *prometheus.Registry
}

// NewLimiterStore wires a rate limiter store backed by Redis.
func NewLimiterStore(rdb redis.UniversalClient) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "limiter"})
}

// globalLimit builds the per-IP middleware from a formatted rate such as "300-M".
func globalLimit(store limiter.Store, formatted string, log zerolog.Logger, onReject func()) (func(http.Handler) http.Handler, error) {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", formatted, err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			log.Error().Err(err).Msg("global rate limiter unavailable")
			common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "rate limiter unavailable", nil)
		}),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			onReject()
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
	)
	return mw.Handler, nil
}
