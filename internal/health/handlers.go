package health

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pos/internal/common"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresCheck probes the database pool.
func PostgresCheck(p Pinger) Check {
	return func(ctx context.Context) error { return p.Ping(ctx) }
}

// RedisCheck probes Redis.
func RedisCheck(r redis.Cmdable) Check {
	return func(ctx context.Context) error { return r.Ping(ctx).Err() }
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks   map[string]Check
	Timeout  time.Duration
	draining atomic.Bool
}

// Drain makes readiness fail so load balancers stop routing before shutdown.
func (h *Handler) Drain() { h.draining.Store(true) }

// Live reports liveness status.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "draining"})
		return
	}
	if len(h.Checks) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unconfigured"})
		return
	}

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := h.Checks[name](ctx)
		cancel()
		if err != nil {
			healthy = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "checks": results})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": results})
}

func (h *Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
