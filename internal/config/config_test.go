package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_DRIVER":            "",
		"DATABASE_URL":            "",
		"CURRENCY_CODE":           "",
		"CURRENCY_MINOR_DIGITS":   "",
		"LOYALTY_SPEND_PER_POINT": "",
		"CHECKOUT_COMMIT_TIMEOUT": "",
		"RECEIPT_TIMEZONE":        "",
	})
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, "IDR", cfg.Currency().Code)
	require.Equal(t, int32(0), cfg.Currency().MinorDigits)
	require.Equal(t, int64(10000), cfg.Loyalty().SpendPerPoint)
	require.Equal(t, 5*time.Second, cfg.CheckoutCommitTimeout)
	require.Equal(t, time.UTC, cfg.Location())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"STORE_DRIVER":            "SQLite",
		"DATABASE_URL":            "file:kasir.db",
		"CURRENCY_CODE":           "usd",
		"CURRENCY_MINOR_DIGITS":   "2",
		"LOYALTY_SPEND_PER_POINT": "500",
		"CHECKOUT_COMMIT_TIMEOUT": "750ms",
		"OBS_ENABLE_TRACING":      "yes",
		"RECEIPT_TIMEZONE":        "UTC",
	})
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, "USD", cfg.CurrencyCode)
	require.Equal(t, int32(2), cfg.CurrencyMinorDigits)
	require.Equal(t, int64(500), cfg.LoyaltySpendPerPoint)
	require.Equal(t, 750*time.Millisecond, cfg.CheckoutCommitTimeout)
	require.True(t, cfg.TracingEnabled)
}

func TestLoadValidation(t *testing.T) {
	_, err := LoadForTests(map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""})
	require.ErrorContains(t, err, "DATABASE_URL")

	_, err = LoadForTests(map[string]string{"STORE_DRIVER": "oracle"})
	require.ErrorContains(t, err, "STORE_DRIVER")

	_, err = LoadForTests(map[string]string{"STORE_DRIVER": "", "CURRENCY_MINOR_DIGITS": "9"})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{"STORE_DRIVER": "", "RECEIPT_TIMEZONE": "Mars/Olympus"})
	require.ErrorContains(t, err, "RECEIPT_TIMEZONE")
}
