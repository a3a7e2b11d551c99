package cmd

import (
	"context"
	"database/sql"

	"transfer-reconciliation-service/cmd/reconciler/config"
	"transfer-reconciliation-service/internal/fxrate"
	"transfer-reconciliation-service/internal/reconciler"
	"transfer-reconciliation-service/internal/store"
	"transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// application holds the wired collaborators shared by serve and detect.
type application struct {
	redis  redis.UniversalClient
	store  *store.Datasource
	engine *reconciler.Engine
	logger logger.Logger
}

// newApplication connects to Postgres and, when configured, Redis, and wires
// the detection engine over them.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log := logger.GetGlobalLogger().WithComponent("app")

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ds := store.New(db)

	app := &application{store: ds, logger: log}

	var cache fxrate.CacheStore = ds
	if cfg.Redis.DSN != "" {
		client, err := fxrate.NewRedisClient(ctx, cfg.Redis.DSN)
		if err != nil {
			// Fall back to the database cache alone.
			log.WithError(err).Warn("Redis unavailable, rate lookups go straight to the database")
		} else {
			app.redis = client
			cache = fxrate.NewRedisTier(client, ds, cfg.Redis.TTL, log)
		}
	}

	var provider fxrate.Provider
	if cfg.Rates.URL != "" {
		provider = fxrate.NewHTTPProvider(cfg.Rates.HTTPProviderConfig, nil, log)
	} else {
		log.Warn("No rate provider configured, only cached exchange rates will be used")
	}

	engineConfig, err := cfg.EngineConfig()
	if err != nil {
		app.Close()
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", cfg.Matching, err)
	}

	engine, err := reconciler.NewEngine(reconciler.Dependencies{
		Transactions: ds,
		Categories:   ds,
		Pending:      ds,
		Links:        ds,
		Candidates:   ds,
		Batches:      ds,
		Rates:        fxrate.NewResolver(cache, provider, log),
	}, engineConfig, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.engine = engine

	return app, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.Database.DSN == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "database.dsn", nil, nil)
	}

	db, err := store.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return nil, errors.LoadFailure("database connection", err).
			WithSuggestion("check database.dsn and that Postgres is reachable")
	}
	return db, nil
}

// Close releases every connection the application opened.
func (a *application) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}
