// Command seeder loads the demo catalog and loyalty members into the configured database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir/internal/cart"
	"github.com/noah-isme/kasir/internal/catalog"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/config"
	"github.com/noah-isme/kasir/internal/lock"
	"github.com/noah-isme/kasir/internal/obs"
	"github.com/noah-isme/kasir/internal/store/postgres"
	"github.com/noah-isme/kasir/internal/store/sqlstore"
)

type seedTarget interface {
	UpsertProduct(ctx context.Context, p cart.Product) error
	UpsertCustomer(ctx context.Context, c checkout.Customer) error
}

func main() {
	storeID := flag.String("store", "", "store id for seeded products (defaults to STORE_ID)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := obs.NewLoggerTo(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if *storeID == "" {
		*storeID = cfg.StoreID
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := run(ctx, cfg, *storeID, logger); err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}
	logger.Info().Str("store_id", *storeID).Msg("seeding completed")
}

func run(ctx context.Context, cfg *config.Config, storeID string, logger zerolog.Logger) error {
	var target seedTarget
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, "kasir-seeder")
		if err != nil {
			return err
		}
		defer pool.Close()
		target = postgres.New(pool)
	case config.DriverMySQL, config.DriverSQLite:
		driver := sqlstore.DriverMySQL
		if cfg.StoreDriver == config.DriverSQLite {
			driver = sqlstore.DriverSQLite
		}
		st, err := sqlstore.Open(ctx, driver, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		target = st
	default:
		return errors.New("seeder needs STORE_DRIVER=postgres, mysql or sqlite")
	}

	seed := func(ctx context.Context) error { return seedAll(ctx, target, storeID, logger) }
	if cfg.RedisURL == "" {
		return seed(ctx)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()
	locker := lock.Locker{R: client, RetryBackoff: cfg.LockRetryBackoff}
	return locker.WithLock(ctx, lock.NameSeed, cfg.LockTTL, seed)
}

func seedAll(ctx context.Context, target seedTarget, storeID string, logger zerolog.Logger) error {
	products := catalog.DemoProducts(storeID)
	for _, p := range products {
		if err := target.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	customers := catalog.DemoCustomers()
	for _, c := range customers {
		if err := target.UpsertCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	logger.Info().Int("products", len(products)).Int("customers", len(customers)).Msg("seeded")
	return nil
}
