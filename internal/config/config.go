package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	LogFormat          string
	LogLevel           string

	Store StoreDefaults

	CartTTL        time.Duration
	RegisterTTL    time.Duration
	CatalogTTL     time.Duration
	SettingsTTL    time.Duration
	IdempotencyTTL time.Duration
	CheckoutLock   time.Duration
	RegisterLock   time.Duration

	RateLimit         string
	CouponAttempts    int
	CouponWindow      time.Duration
	MaxBodyBytes      int64
	SecurityHeaders   bool
	MetricsNamespace  string
	ShutdownTimeout   time.Duration
	AutoMigrate       bool
	WorkerQueue       string
	WorkerConcurrency int
	TaskMaxRetry      int

	Breaker Breaker

	Tracing Tracing
}

// StoreDefaults are the pricing settings used when the database has no settings row.
type StoreDefaults struct {
	TaxRatePercent        decimal.Decimal
	FlatShippingRate      decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	CurrencySymbol        string
}

// Breaker configures the circuit breaker in front of the task queue.
type Breaker struct {
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// Tracing configures the OTLP exporter.
type Tracing struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	SampleRatio float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		CartTTL:            parseDuration(k.String("CART_TTL"), "168h"),
		RegisterTTL:        parseDuration(k.String("REGISTER_TTL"), "720h"),
		CatalogTTL:         parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		SettingsTTL:        parseDuration(k.String("SETTINGS_CACHE_TTL"), "5m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutLock:       parseDuration(k.String("CHECKOUT_LOCK_TTL"), "30s"),
		RegisterLock:       parseDuration(k.String("REGISTER_LOCK_TTL"), "10s"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		CouponAttempts:     parseInt(k.String("COUPON_RATE_LIMIT"), 10),
		CouponWindow:       parseDuration(k.String("COUPON_RATE_WINDOW"), "1m"),
		MaxBodyBytes:       int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
		SecurityHeaders:    parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		MetricsNamespace:   valueOrDefault(k.String("METRICS_NAMESPACE"), "toko"),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		AutoMigrate:        parseBool(k.String("AUTO_MIGRATE")),
		WorkerQueue:        valueOrDefault(k.String("WORKER_QUEUE"), "events"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		TaskMaxRetry:       parseInt(k.String("TASK_MAX_RETRY"), 5),
	}

	store, err := loadStoreDefaults(k)
	if err != nil {
		return nil, err
	}
	cfg.Store = store

	cfg.Breaker = Breaker{
		MinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		FailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		OpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
	}

	cfg.Tracing = Tracing{
		Enabled:     parseBool(k.String("OTEL_ENABLED")),
		Endpoint:    k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName: valueOrDefault(k.String("OTEL_SERVICE_NAME"), "toko-pos"),
		SampleRatio: parseFloat(k.String("OTEL_SAMPLE_RATIO"), 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

func loadStoreDefaults(k *koanf.Koanf) (StoreDefaults, error) {
	tax, err := parseDecimal("STORE_TAX_RATE_PERCENT", k.String("STORE_TAX_RATE_PERCENT"), "0")
	if err != nil {
		return StoreDefaults{}, err
	}
	flat, err := parseDecimal("STORE_FLAT_SHIPPING_RATE", k.String("STORE_FLAT_SHIPPING_RATE"), "0")
	if err != nil {
		return StoreDefaults{}, err
	}
	threshold, err := parseDecimal("STORE_FREE_SHIPPING_THRESHOLD", k.String("STORE_FREE_SHIPPING_THRESHOLD"), "0")
	if err != nil {
		return StoreDefaults{}, err
	}
	if tax.IsNegative() || tax.GreaterThan(decimal.NewFromInt(100)) {
		return StoreDefaults{}, fmt.Errorf("STORE_TAX_RATE_PERCENT must be within 0-100, got %s", tax)
	}
	if flat.IsNegative() || threshold.IsNegative() {
		return StoreDefaults{}, errors.New("store shipping settings must not be negative")
	}
	return StoreDefaults{
		TaxRatePercent:        tax,
		FlatShippingRate:      flat,
		FreeShippingThreshold: threshold,
		CurrencySymbol:        valueOrDefault(k.String("STORE_CURRENCY_SYMBOL"), "$"),
	}, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseDecimal(name, value, fallback string) (decimal.Decimal, error) {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", name, value)
	}
	return d, nil
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
