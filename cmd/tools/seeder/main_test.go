package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kasir/internal/catalog"
	"github.com/noah-isme/kasir/internal/config"
)

func TestRunSeedsSQLite(t *testing.T) {
	cfg := &config.Config{
		StoreDriver: config.DriverSQLite,
		DatabaseURL: filepath.Join(t.TempDir(), "seed.db"),
	}
	ctx := context.Background()
	require.NoError(t, run(ctx, cfg, "s1", zerolog.Nop()))
	require.NoError(t, run(ctx, cfg, "s1", zerolog.Nop()))
}

func TestRunRejectsMemoryDriver(t *testing.T) {
	err := run(context.Background(), &config.Config{StoreDriver: config.DriverMemory}, "s1", zerolog.Nop())
	require.Error(t, err)
}

func TestDemoDataIsStocked(t *testing.T) {
	for _, p := range catalog.DemoProducts("s1") {
		require.Equal(t, "s1", p.StoreID)
		require.Positive(t, p.Stock)
		require.Positive(t, p.Price)
	}
	require.NotEmpty(t, catalog.DemoCustomers())
}
