package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	SalesAPIBaseURL    string
	SalesAPIKey        string
	CustomerAPIBaseURL string
	CustomerAPIKey     string
	ReceiptWebhookURL  string
	ReceiptSecret      string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	IdempotencyTTL       time.Duration
	SubmitLockTTL        time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
	GlobalRateLimit string

	OutboundTimeout     time.Duration
	OutboundMaxAttempts int
	OutboundBaseBackoff time.Duration
	BreakerWindow       int
	BreakerThreshold    float64
	BreakerCooldown     time.Duration

	MetricsNamespace string
	OTLPEndpoint     string
	TraceSampleRatio float64
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
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SalesAPIBaseURL:    strings.TrimSpace(k.String("SALES_API_BASE_URL")),
		SalesAPIKey:        k.String("SALES_API_KEY"),
		CustomerAPIBaseURL: strings.TrimSpace(k.String("CUSTOMER_API_BASE_URL")),
		CustomerAPIKey:     k.String("CUSTOMER_API_KEY"),
		ReceiptWebhookURL:  strings.TrimSpace(k.String("RECEIPT_WEBHOOK_URL")),
		ReceiptSecret:      k.String("RECEIPT_WEBHOOK_SECRET"),

		SessionTTL:           parseDuration(k.String("SESSION_TTL"), "12h"),
		SessionSweepInterval: parseDuration(k.String("SESSION_SWEEP_INTERVAL"), "5m"),
		IdempotencyTTL:       parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		SubmitLockTTL:        parseDuration(k.String("SUBMIT_LOCK_TTL"), "30s"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    intOrDefault(k.Int("RATE_LIMIT_MAX"), 120),
		GlobalRateLimit: valueOrDefault(k.String("GLOBAL_RATE_LIMIT"), "600-M"),

		OutboundTimeout:     parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),
		OutboundMaxAttempts: intOrDefault(k.Int("OUTBOUND_MAX_ATTEMPTS"), 3),
		OutboundBaseBackoff: parseDuration(k.String("OUTBOUND_BASE_BACKOFF"), "200ms"),
		BreakerWindow:       intOrDefault(k.Int("BREAKER_WINDOW"), 20),
		BreakerThreshold:    floatOrDefault(k.Float64("BREAKER_THRESHOLD"), 0.5),
		BreakerCooldown:     parseDuration(k.String("BREAKER_COOLDOWN"), "15s"),

		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "pos"),
		OTLPEndpoint:     strings.TrimSpace(k.String("OTLP_ENDPOINT")),
		TraceSampleRatio: floatOrDefault(k.Float64("TRACE_SAMPLE_RATIO"), 0.1),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SalesAPIBaseURL == "" {
		return nil, errors.New("SALES_API_BASE_URL is required")
	}

	return cfg, nil
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

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func floatOrDefault(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}
