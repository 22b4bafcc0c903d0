package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config captures every runtime setting the terminal gateway needs. Values
// come from the environment, optionally seeded from a .env file in dev.
type Config struct {
	Env      string
	Port     string
	LogLevel string
	LogFmt   string

	RedisURL string

	UpstreamBaseURL string
	UpstreamAPIKey  string
	UpstreamTimeout time.Duration

	AuthJWKSURL   string
	AuthIssuer    string
	AuthAudience  string
	AuthClockSkew time.Duration

	DeferredFeeMethodID string
	AbsorbedFeeShare    float64

	CartTTL          time.Duration
	PaymentsTTL      time.Duration
	CatalogCacheTTL  time.Duration
	MethodsCacheTTL  time.Duration
	IdempotencyTTL   time.Duration
	OrderLockTTL     time.Duration
	RateLimitPerMin  int
	MetricsNamespace string
	MetricsBuckets   string

	TracingEnabled  bool
	TracingEndpoint string
	TracingSample   float64

	BreakerFailureRatio float64
	BreakerMinRequests  int
	BreakerOpenFor      time.Duration
	HTTPRetries         int
	HTTPRetryBackoff    time.Duration
}

// Load reads configuration from the process environment. A .env file is
// loaded first when present so local runs behave like deployed ones.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		Env:      valueOrDefault(k, "POS_ENV", "development"),
		Port:     valueOrDefault(k, "POS_PORT", "8080"),
		LogLevel: valueOrDefault(k, "LOG_LEVEL", "info"),
		LogFmt:   valueOrDefault(k, "LOG_FORMAT", "json"),

		RedisURL: valueOrDefault(k, "REDIS_URL", "redis://localhost:6379/0"),

		UpstreamBaseURL: strings.TrimRight(valueOrDefault(k, "UPSTREAM_BASE_URL", "http://localhost:9000"), "/"),
		UpstreamAPIKey:  valueOrDefault(k, "UPSTREAM_API_KEY", ""),
		UpstreamTimeout: parseDuration(k, "UPSTREAM_TIMEOUT", 10*time.Second),

		AuthJWKSURL:   valueOrDefault(k, "AUTH_JWKS_URL", ""),
		AuthIssuer:    valueOrDefault(k, "AUTH_ISSUER", ""),
		AuthAudience:  valueOrDefault(k, "AUTH_AUDIENCE", ""),
		AuthClockSkew: parseDuration(k, "AUTH_CLOCK_SKEW", 30*time.Second),

		DeferredFeeMethodID: valueOrDefault(k, "POS_DEFERRED_FEE_METHOD_ID", "pm-006"),
		AbsorbedFeeShare:    parseFloat(k, "POS_ABSORBED_FEE_SHARE", 0.8),

		CartTTL:          parseDuration(k, "CART_TTL", 12*time.Hour),
		PaymentsTTL:      parseDuration(k, "PAYMENTS_TTL", 2*time.Hour),
		CatalogCacheTTL:  parseDuration(k, "CATALOG_CACHE_TTL", 5*time.Minute),
		MethodsCacheTTL:  parseDuration(k, "METHODS_CACHE_TTL", 10*time.Minute),
		IdempotencyTTL:   parseDuration(k, "IDEMPOTENCY_TTL", 24*time.Hour),
		OrderLockTTL:     parseDuration(k, "ORDER_LOCK_TTL", 15*time.Second),
		RateLimitPerMin:  parseInt(k, "RATE_LIMIT_PER_MIN", 300),
		MetricsNamespace: valueOrDefault(k, "METRICS_NAMESPACE", "pos"),
		MetricsBuckets:   valueOrDefault(k, "METRICS_BUCKETS_MS", ""),

		TracingEnabled:  parseBool(k, "TRACING_ENABLED", false),
		TracingEndpoint: valueOrDefault(k, "TRACING_ENDPOINT", "localhost:4318"),
		TracingSample:   parseFloat(k, "TRACING_SAMPLE_RATIO", 1.0),

		BreakerFailureRatio: parseFloat(k, "BREAKER_FAILURE_RATIO", 0.5),
		BreakerMinRequests:  parseInt(k, "BREAKER_MIN_REQUESTS", 10),
		BreakerOpenFor:      parseDuration(k, "BREAKER_OPEN_FOR", 30*time.Second),
		HTTPRetries:         parseInt(k, "HTTP_RETRIES", 2),
		HTTPRetryBackoff:    parseDuration(k, "HTTP_RETRY_BACKOFF", 200*time.Millisecond),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadForTests builds a config with sane defaults for unit tests.
func LoadForTests() *Config {
	return &Config{
		Env:                 "test",
		Port:                "0",
		LogLevel:            "error",
		LogFmt:              "console",
		RedisURL:            "redis://localhost:6379/1",
		UpstreamBaseURL:     "http://localhost:9000",
		UpstreamTimeout:     2 * time.Second,
		AuthClockSkew:       30 * time.Second,
		DeferredFeeMethodID: "pm-006",
		AbsorbedFeeShare:    0.8,
		CartTTL:             time.Hour,
		PaymentsTTL:         time.Hour,
		CatalogCacheTTL:     time.Minute,
		MethodsCacheTTL:     time.Minute,
		IdempotencyTTL:      time.Hour,
		OrderLockTTL:        5 * time.Second,
		RateLimitPerMin:     1000,
		MetricsNamespace:    "pos_test",
		TracingSample:       1,
		BreakerFailureRatio: 0.5,
		BreakerMinRequests:  10,
		BreakerOpenFor:      time.Second,
		HTTPRetries:         0,
		HTTPRetryBackoff:    10 * time.Millisecond,
	}
}

func (c *Config) validate() error {
	if c.AbsorbedFeeShare < 0 || c.AbsorbedFeeShare > 1 {
		return fmt.Errorf("POS_ABSORBED_FEE_SHARE must be in [0,1], got %v", c.AbsorbedFeeShare)
	}
	if c.Env == "production" {
		if c.UpstreamAPIKey == "" {
			return fmt.Errorf("UPSTREAM_API_KEY is required in production")
		}
		if c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required in production")
		}
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func valueOrDefault(k *koanf.Koanf, key, fallback string) string {
	if v := strings.TrimSpace(k.String(key)); v != "" {
		return v
	}
	return fallback
}

func parseDuration(k *koanf.Koanf, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(k *koanf.Koanf, key string, fallback int) int {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(k *koanf.Koanf, key string, fallback float64) float64 {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(k *koanf.Koanf, key string, fallback bool) bool {
	raw := strings.TrimSpace(k.String(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}
