package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/rs/zerolog"

	"github.com/neverbe/pos-api/internal/auth"
	"github.com/neverbe/pos-api/internal/cart"
	"github.com/neverbe/pos-api/internal/catalog"
	"github.com/neverbe/pos-api/internal/checkout"
	"github.com/neverbe/pos-api/internal/common"
	"github.com/neverbe/pos-api/internal/config"
	"github.com/neverbe/pos-api/internal/exchange"
	"github.com/neverbe/pos-api/internal/health"
	"github.com/neverbe/pos-api/internal/obs"
	"github.com/neverbe/pos-api/internal/payment"
	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/ratelimit"
	"github.com/neverbe/pos-api/internal/resilience"
	"github.com/neverbe/pos-api/internal/upstream"
)

type readinessChecker struct {
	redis    *redis.Client
	upstream *upstream.Client
}

func (c readinessChecker) PingRedis(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingUpstream(ctx context.Context) error {
	return c.upstream.Ping(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("configuration error")
	}
	log := obs.NewLogger(cfg.LogFmt, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting pos terminal gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		Endpoint:     cfg.TracingEndpoint,
		ServiceName:  "pos-api",
		SampleRatio:  cfg.TracingSample,
		ExportPeriod: 5 * time.Second,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracing init failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if cfg.TracingEnabled {
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			log.Warn().Err(err).Msg("redis tracing instrumentation failed")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis not reachable at startup")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), registry)
	domainMetrics := obs.NewDomainMetrics(cfg.MetricsNamespace, registry)
	breakerMetrics := resilience.NewBreakerMetrics(cfg.MetricsNamespace, registry)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "merchant_backend",
		FailureRatio: cfg.BreakerFailureRatio,
		MinRequests:  cfg.BreakerMinRequests,
		OpenFor:      cfg.BreakerOpenFor,
	}, log, breakerMetrics)

	backend := &upstream.Client{
		BaseURL: cfg.UpstreamBaseURL,
		APIKey:  cfg.UpstreamAPIKey,
		HTTP: &resilience.HTTPClient{
			Client:  &http.Client{Timeout: cfg.UpstreamTimeout},
			Breaker: breaker,
			Retries: cfg.HTTPRetries,
			Backoff: cfg.HTTPRetryBackoff,
		},
		Log:     log,
		Metrics: domainMetrics,
	}

	verifier, err := auth.NewVerifier(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience, cfg.AuthClockSkew)
	if err != nil {
		log.Fatal().Err(err).Msg("auth init failed")
	}

	calc := pricing.NewCalculator(cfg.AbsorbedFeeShare)
	cartSvc := &cart.Service{R: rdb, TTL: cfg.CartTTL, Log: log}
	drafts := &payment.Drafts{R: rdb, TTL: cfg.PaymentsTTL}
	methods := &payment.Methods{
		Source:              backend,
		Cache:               &catalog.Cache{R: rdb, TTL: cfg.MethodsCacheTTL},
		DeferredFeeMethodID: cfg.DeferredFeeMethodID,
		Log:                 log,
		Metrics:             domainMetrics,
	}
	catalogSvc := &catalog.Service{
		Source:  backend,
		Cache:   &catalog.Cache{R: rdb, TTL: cfg.CatalogCacheTTL},
		Log:     log,
		Metrics: domainMetrics,
	}
	checkoutSvc := &checkout.Service{
		Cart:    cartSvc,
		Drafts:  drafts,
		Methods: methods,
		Backend: backend,
		Calc:    calc,
		R:       rdb,
		LockTTL: cfg.OrderLockTTL,
		Log:     log,
		Metrics: domainMetrics,
	}
	exchangeSvc := &exchange.Service{
		Backend: backend,
		Methods: methods,
		Calc:    calc,
		Log:     log,
		Metrics: domainMetrics,
	}

	limiter := &ratelimit.SlidingWindow{R: rdb, Limit: cfg.RateLimitPerMin, Window: time.Minute}
	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}
	healthHandler := &health.Handler{Checker: readinessChecker{redis: rdb, upstream: backend}, Timeout: 2 * time.Second}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.RequestLogger{Logger: log}.Middleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1/pos", func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier))
		r.Use(ratelimit.Middleware(limiter))

		(&catalog.Handler{Service: catalogSvc}).Routes(r)
		(&payment.Handler{Methods: methods}).Routes(r)
		(&cart.Handler{Service: cartSvc}).Routes(r)

		r.Group(func(r chi.Router) {
			r.Use(idem.Middleware)
			(&checkout.Handler{Service: checkoutSvc}).Routes(r)
			(&exchange.Handler{Service: exchangeSvc}).Routes(r)
		})
	})

	if !cfg.IsProduction() {
		r.Route("/debug/pprof", func(r chi.Router) {
			r.Get("/", pprof.Index)
			r.Get("/cmdline", pprof.Cmdline)
			r.Get("/profile", pprof.Profile)
			r.Get("/symbol", pprof.Symbol)
			r.Get("/trace", pprof.Trace)
			r.Handle("/{name}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				pprof.Handler(chi.URLParam(req, "name")).ServeHTTP(w, req)
			}))
		})
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
