package main

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayush/terminology-portal/internal/config"
	"github.com/ayush/terminology-portal/internal/domain/emr"
	"github.com/ayush/terminology-portal/internal/domain/mapping"
	"github.com/ayush/terminology-portal/internal/domain/terminology"
	"github.com/ayush/terminology-portal/internal/platform/db"
	"github.com/ayush/terminology-portal/internal/platform/mongodb"
	"github.com/ayush/terminology-portal/migrations"
)

// store bundles the three catalogs of the configured driver.
type store struct {
	driver      string
	terms       terminology.Repository
	mappings    mapping.Repository
	submissions emr.Repository
	health      echo.HandlerFunc
	// inTx runs fn atomically where the driver supports it.
	inTx  func(ctx context.Context, fn func(ctx context.Context) error) error
	close func()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case config.StoreDriverMongo:
		return openMongo(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	pool, err := db.NewPool(ctx, db.PoolOptions{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to postgres")

	migrator := db.NewMigrator(pool, migrations.FS)
	applied, err := migrator.Up(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if applied > 0 {
		logger.Info().Int("applied", applied).Msg("applied schema migrations")
	}

	return &store{
		driver:      config.StoreDriverPostgres,
		terms:       terminology.NewRepoPG(pool),
		mappings:    mapping.NewRepoPG(pool),
		submissions: emr.NewRepoPG(pool),
		health:      db.HealthHandler(pool, migrator),
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.InTx(ctx, pool, fn)
		},
		close: pool.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	client, err := mongodb.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	database := client.Database(cfg.MongoDatabase)
	if err := mongodb.EnsureIndexes(ctx, database); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")

	return &store{
		driver:      config.StoreDriverMongo,
		terms:       terminology.NewRepoMongo(database),
		mappings:    mapping.NewRepoMongo(database),
		submissions: emr.NewRepoMongo(database),
		health:      mongodb.HealthHandler(client),
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Warn().Err(err).Msg("mongodb disconnect failed")
			}
		},
	}, nil
}
