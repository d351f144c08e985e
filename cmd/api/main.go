package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/config"
	"github.com/noah-isme/backend-pos/internal/customer"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/health"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/notify"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pos"
	"github.com/noah-isme/backend-pos/internal/ratelimit"
	"github.com/noah-isme/backend-pos/internal/resilience"
	"github.com/noah-isme/backend-pos/internal/sales"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TraceSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	outboundClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.OutboundTimeout,
	}

	salesClient := &sales.HTTPClient{
		BaseURL: cfg.SalesAPIBaseURL,
		APIKey:  cfg.SalesAPIKey,
		HTTP: &resilience.HTTPClient{
			Client:      outboundClient,
			Breaker:     resilience.NewBreaker(cfg.BreakerWindow, cfg.BreakerThreshold, cfg.BreakerCooldown).WithTarget("sales-api").WithLogger(logger),
			BaseBackoff: cfg.OutboundBaseBackoff,
			MaxAttempts: cfg.OutboundMaxAttempts,
			Timeout:     cfg.OutboundTimeout,
			Target:      "sales-api",
			Logger:      &logger,
		},
	}

	var customers *customer.Service
	if cfg.CustomerAPIBaseURL != "" {
		customers = &customer.Service{Directory: &customer.HTTPClient{
			BaseURL: cfg.CustomerAPIBaseURL,
			APIKey:  cfg.CustomerAPIKey,
			HTTP: &resilience.HTTPClient{
				Client:      outboundClient,
				Breaker:     resilience.NewBreaker(cfg.BreakerWindow, cfg.BreakerThreshold, cfg.BreakerCooldown).WithTarget("customer-api").WithLogger(logger),
				BaseBackoff: cfg.OutboundBaseBackoff,
				MaxAttempts: cfg.OutboundMaxAttempts,
				Timeout:     cfg.OutboundTimeout,
				Target:      "customer-api",
				Logger:      &logger,
			},
		}}
	}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(redisConn)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	bus := &events.Bus{Notifiers: []events.Notifier{
		&notify.ReceiptEnqueuer{Client: taskClient, Logger: logger},
	}}

	store := pos.NewStore(cfg.SessionTTL)
	go store.Run(ctx, cfg.SessionSweepInterval)

	submitter := &pos.Submitter{
		Sales:   salesClient,
		Events:  bus,
		Locker:  &lock.Locker{R: redisClient},
		LockTTL: cfg.SubmitLockTTL,
		Logger:  logger,
	}

	posHandler := &pos.Handler{
		Store:     store,
		Submitter: submitter,
		Customers: customers,
		Validate:  validator.New(),
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	sessionLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PerSession,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternRecorder)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if gatewayLimiter := newGatewayLimiter(cfg, redisClient, logger); gatewayLimiter != nil {
		r.Use(gatewayLimiter.Handler)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{redis: redisClient, salesBaseURL: cfg.SalesAPIBaseURL, client: outboundClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/sessions", posHandler.CreateSession)
		v.Route("/sessions/{id}", func(s chi.Router) {
			s.Use(sessionLimit.Middleware)
			s.Get("/", posHandler.GetSession)
			s.Delete("/", posHandler.DeleteSession)

			s.Post("/items", posHandler.AddItem)
			s.Delete("/items", posHandler.ClearCart)
			s.Patch("/items/{lineId}", posHandler.ChangeQuantity)
			s.Delete("/items/{lineId}", posHandler.RemoveItem)
			s.Put("/items/{lineId}/discount", posHandler.SetItemDiscount)
			s.Delete("/items/{lineId}/discount", posHandler.ClearItemDiscount)
			s.Put("/discount", posHandler.SetGlobalDiscount)
			s.Delete("/discount", posHandler.ClearGlobalDiscount)

			s.Put("/payment", posHandler.SetPayment)
			s.Post("/payment/allocations", posHandler.AddAllocation)
			s.Put("/payment/allocations/{index}", posHandler.SetAllocation)
			s.Delete("/payment/allocations/{index}", posHandler.RemoveAllocation)

			s.Put("/customer", posHandler.AttachCustomer)
			s.Delete("/customer", posHandler.DetachCustomer)

			s.With(idem.Middleware).Post("/complete", posHandler.Complete)
			s.Get("/receipt", posHandler.GetReceipt)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newGatewayLimiter(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) *limiterstdlib.Middleware {
	rate, err := limiter.NewRateFromFormatted(cfg.GlobalRateLimit)
	if err != nil {
		logger.Warn().Err(err).Str("rate", cfg.GlobalRateLimit).Msg("invalid global rate limit, disabled")
		return nil
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "gwlimit"})
	if err != nil {
		logger.Warn().Err(err).Msg("gateway limiter store unavailable, disabled")
		return nil
	}
	return limiterstdlib.NewMiddleware(limiter.New(store, rate))
}

type readinessChecker struct {
	redis        *redis.Client
	salesBaseURL string
	client       *http.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingSales(ctx context.Context, timeout time.Duration) error {
	if c.salesBaseURL == "" || c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, strings.TrimRight(c.salesBaseURL, "/")+"/sales", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return errors.New("sales interface unavailable: " + strconv.Itoa(resp.StatusCode))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
