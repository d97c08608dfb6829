package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/kasir/internal/catalog"
	"github.com/noah-isme/kasir/internal/checkout"
	"github.com/noah-isme/kasir/internal/config"
	"github.com/noah-isme/kasir/internal/events"
	"github.com/noah-isme/kasir/internal/lock"
	"github.com/noah-isme/kasir/internal/obs"
	"github.com/noah-isme/kasir/internal/receipt"
	"github.com/noah-isme/kasir/internal/store/memory"
	"github.com/noah-isme/kasir/internal/store/postgres"
	"github.com/noah-isme/kasir/internal/store/sqlstore"
)

// app holds the process wide collaborators shared by every command.
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	store       checkout.Store
	sqlStore    *sqlstore.Store
	redis       *redis.Client
	catalog     *catalog.Service
	coordinator *checkout.Coordinator
	closers     []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: obs.NewLoggerTo(os.Stderr, cfg.LogFormat, cfg.LogLevel).With().Str("app_env", cfg.AppEnv).Logger(),
	}
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "kasir",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      cfg.TracingExporter,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			a.logger.Error().Err(err).Msg("initialise tracing")
		} else {
			a.closers = append(a.closers, func() {
				if err := shutdown(context.Background()); err != nil {
					a.logger.Error().Err(err).Msg("shutdown tracer")
				}
			})
		}
	}

	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.close()
		return nil, err
	}

	var cache *catalog.Cache
	if a.redis != nil {
		cache = catalog.NewCache(a.redis, cfg.CatalogCacheTTL)
	}
	a.catalog = catalog.NewService(catalog.Config{Products: a.store, Cache: cache, Logger: a.logger})

	bus := &events.Bus{Notifiers: []events.Notifier{events.LogNotifier{Logger: a.logger}}}
	coord := checkout.New(a.store)
	coord.Loyalty = cfg.Loyalty()
	coord.CommitTimeout = cfg.CheckoutCommitTimeout
	coord.Logger = a.logger
	coord.Events = bus
	if a.redis != nil {
		bus.Subscribe(a.catalog.Invalidator())
		bus.Subscribe(events.RedisStreamNotifier{R: a.redis, MaxLen: 10_000})
		coord.Guard = checkout.RedisGuard{R: a.redis, TTL: cfg.IdempotencyTTL}
	}
	a.coordinator = coord
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case config.DriverMemory:
		st := memory.New()
		for _, p := range catalog.DemoProducts(a.cfg.StoreID) {
			st.PutProduct(p)
		}
		for _, c := range catalog.DemoCustomers() {
			st.PutCustomer(c)
		}
		a.store = st
		a.logger.Warn().Msg("using in-memory store; sales are lost on exit")
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, a.cfg.DatabaseURL, "kasir")
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		a.store = postgres.New(pool)
	case config.DriverMySQL, config.DriverSQLite:
		driver := sqlstore.DriverMySQL
		if a.cfg.StoreDriver == config.DriverSQLite {
			driver = sqlstore.DriverSQLite
		}
		st, err := sqlstore.Open(ctx, driver, a.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() {
			if err := st.Close(); err != nil {
				a.logger.Error().Err(err).Msg("close database")
			}
		})
		a.sqlStore = st
		a.store = st
	default:
		return fmt.Errorf("unsupported store driver %q", a.cfg.StoreDriver)
	}
	return nil
}

func (a *app) openRedis(ctx context.Context) error {
	if a.cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		a.logger.Error().Err(err).Msg("instrument redis tracing")
	}
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Error().Err(err).Msg("close redis")
		}
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.redis = client
	return nil
}

// withLock runs fn under the named distributed lock when Redis is configured.
func (a *app) withLock(ctx context.Context, name string, fn func(context.Context) error) error {
	if a.redis == nil {
		return fn(ctx)
	}
	locker := lock.Locker{R: a.redis, RetryBackoff: a.cfg.LockRetryBackoff}
	err := locker.WithLock(ctx, name, a.cfg.LockTTL, fn)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("waiting for %s lock: %w", name, err)
	}
	return err
}

func (a *app) migrate(ctx context.Context) error {
	return a.withLock(ctx, lock.NameMigrate, func(ctx context.Context) error {
		switch {
		case a.cfg.StoreDriver == config.DriverPostgres:
			return postgres.Migrate(a.cfg.DatabaseURL)
		case a.sqlStore != nil:
			return a.sqlStore.Migrate(ctx)
		default:
			a.logger.Info().Str("driver", a.cfg.StoreDriver).Msg("nothing to migrate")
			return nil
		}
	})
}

func (a *app) storeInfo() receipt.StoreInfo {
	return receipt.StoreInfo{
		Name:     a.cfg.StoreName,
		Address:  a.cfg.StoreAddress,
		Phone:    a.cfg.StorePhone,
		Footer:   a.cfg.ReceiptFooter,
		Currency: a.cfg.Currency(),
		Location: a.cfg.Location(),
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
