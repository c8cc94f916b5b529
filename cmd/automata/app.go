package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-automata/internal/automation"
	"github.com/nerrad567/gray-logic-automata/internal/catalog"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/logging"
	_ "github.com/nerrad567/gray-logic-automata/migrations"
)

// app holds what every command opens: the database, the codec and the
// automation store on the configured backend.
type app struct {
	cfg   *config.Config
	log   *logging.Logger
	db    *database.DB
	codec *automation.Codec
	store *automation.Store
	redis *redis.Client
}

// openDatabase connects to SQLite and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newCodec builds the codec over every known step type.
func newCodec(log *logging.Logger) (*automation.Codec, error) {
	triggers, err := catalog.Triggers()
	if err != nil {
		return nil, fmt.Errorf("building trigger registry: %w", err)
	}
	actions, err := catalog.Actions()
	if err != nil {
		return nil, fmt.Errorf("building action registry: %w", err)
	}
	codec := automation.NewCodec(triggers, actions)
	codec.SetLogger(log.Component("codec"))
	return codec, nil
}

// openApp opens the database and loads the automation store.
func openApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db}

	a.codec, err = newCodec(log)
	if err != nil {
		a.Close() //nolint:errcheck // already failing
		return nil, err
	}

	persister, err := a.persister(ctx)
	if err != nil {
		a.Close() //nolint:errcheck // already failing
		return nil, err
	}

	a.store = automation.NewStore(persister, a.codec)
	a.store.SetLogger(log.Component("store"))
	if err := a.store.Load(ctx); err != nil {
		a.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("loading automations: %w", err)
	}

	return a, nil
}

// persister selects the store backend named by engine.store.
func (a *app) persister(ctx context.Context) (automation.Persister, error) {
	switch a.cfg.Engine.Store {
	case config.StoreSQLite:
		return automation.NewSQLitePersister(a.db.DB), nil

	case config.StoreRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", a.cfg.Redis.Addr, err)
		}
		a.log.Info("automation store on redis", "addr", a.cfg.Redis.Addr)
		return automation.NewRedisPersister(a.redis, a.cfg.Redis.Key), nil

	case config.StoreMemory:
		a.log.Warn("automation store is in memory; changes are lost on exit")
		return automation.NewMemoryPersister(), nil

	default:
		return nil, fmt.Errorf("unknown automation store %q", a.cfg.Engine.Store)
	}
}

// Close releases the store, redis and the database in that order.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
