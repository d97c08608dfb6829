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

	"github.com/noah-isme/kasir/internal/pricing"
)

// Storage drivers selectable with STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	StoreDriver string
	DatabaseURL string
	RedisURL    string

	CurrencyCode        string
	CurrencyMinorDigits int32

	LoyaltySpendPerPoint int64
	LoyaltyPointsPerStep int64

	CheckoutCommitTimeout time.Duration
	IdempotencyTTL        time.Duration
	CatalogCacheTTL       time.Duration
	LockTTL               time.Duration
	LockRetryBackoff      time.Duration

	StoreID         string
	StoreName       string
	StoreAddress    string
	StorePhone      string
	ReceiptFooter   string
	ReceiptTimezone string

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	TracingSampling  float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		StoreDriver: strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), DriverMemory)),
		DatabaseURL: strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(k.String("REDIS_URL")),

		CurrencyCode:        strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "IDR")),
		CurrencyMinorDigits: int32(parseInt(k.String("CURRENCY_MINOR_DIGITS"), 0)),

		LoyaltySpendPerPoint: parseInt(k.String("LOYALTY_SPEND_PER_POINT"), 10000),
		LoyaltyPointsPerStep: parseInt(k.String("LOYALTY_POINTS_PER_STEP"), 1),

		CheckoutCommitTimeout: parseDuration(k.String("CHECKOUT_COMMIT_TIMEOUT"), "5s"),
		IdempotencyTTL:        parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		CatalogCacheTTL:       parseDuration(k.String("CATALOG_CACHE_TTL"), "30s"),
		LockTTL:               parseDuration(k.String("LOCK_TTL"), "2m"),
		LockRetryBackoff:      parseDuration(k.String("LOCK_RETRY_BACKOFF"), "250ms"),

		StoreID:         strings.TrimSpace(k.String("STORE_ID")),
		StoreName:       valueOrDefault(k.String("STORE_NAME"), "KASIR"),
		StoreAddress:    strings.TrimSpace(k.String("STORE_ADDRESS")),
		StorePhone:      strings.TrimSpace(k.String("STORE_PHONE")),
		ReceiptFooter:   valueOrDefault(k.String("RECEIPT_FOOTER"), "Thank you"),
		ReceiptTimezone: valueOrDefault(k.String("RECEIPT_TIMEZONE"), "UTC"),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "kasir"),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING")),
		TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres, DriverMySQL, DriverSQLite:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", cfg.StoreDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.CurrencyMinorDigits < 0 || cfg.CurrencyMinorDigits > 4 {
		return nil, errors.New("CURRENCY_MINOR_DIGITS must be between 0 and 4")
	}
	if _, err := time.LoadLocation(cfg.ReceiptTimezone); err != nil {
		return nil, fmt.Errorf("RECEIPT_TIMEZONE: %w", err)
	}

	return cfg, nil
}

// Currency returns the configured currency.
func (c *Config) Currency() pricing.Currency {
	return pricing.Currency{Code: c.CurrencyCode, MinorDigits: c.CurrencyMinorDigits}
}

// Loyalty returns the configured loyalty rule.
func (c *Config) Loyalty() pricing.LoyaltyRule {
	return pricing.LoyaltyRule{SpendPerPoint: c.LoyaltySpendPerPoint, PointsPerStep: c.LoyaltyPointsPerStep}
}

// Location returns the receipt time zone; Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReceiptTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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

func parseInt(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
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
