package app

import (
	"context"
	"errors"
	"fmt"

	"copycraft/internal/allowlist"
	"copycraft/internal/config"
	"copycraft/internal/db"
	"copycraft/internal/logger"
	"copycraft/internal/redis"
)

type Infra struct {
	DB    *db.DB // nil unless the postgres access store is selected
	Redis *redis.Client
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.Access.Store == config.StorePostgres {
		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		infra.DB = database
	}

	redisClient, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	infra.Redis = redisClient

	logger.Info("redis ready", map[string]any{"addr": cfg.Redis.Addr})

	return infra, nil
}

func openDatabase(ctx context.Context, cfg config.Config) (*db.DB, error) {
	database, err := db.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if err := db.RunAccessMigration(ctx, database); err != nil {
		_ = database.Close()
		return nil, err
	}

	logger.Info("database ready", nil)
	return database, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	return errors.Join(errs...)
}

// accessStore picks the authorization store named by access.store.
func accessStore(cfg config.Config, infra *Infra) (allowlist.Admin, error) {
	switch cfg.Access.Store {
	case config.StorePostgres:
		if infra.DB == nil {
			return nil, errors.New("postgres access store without database")
		}
		return allowlist.NewPostgresStore(infra.DB), nil
	case config.StoreRedis:
		if infra.Redis == nil {
			return nil, errors.New("redis access store without redis")
		}
		return allowlist.NewRedisStore(infra.Redis.Client), nil
	case config.StoreStatic:
		return allowlist.NewStaticStore(cfg.Access.AllowedEmails), nil
	default:
		return nil, fmt.Errorf("unknown access store %q", cfg.Access.Store)
	}
}

// OpenAccessStore connects only the backend the configured access store
// needs. The returned close func releases it.
func OpenAccessStore(ctx context.Context, cfg config.Config) (allowlist.Admin, func() error, error) {
	if err := cfg.ValidateAccess(); err != nil {
		return nil, nil, err
	}

	infra := &Infra{}
	switch cfg.Access.Store {
	case config.StorePostgres:
		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		infra.DB = database
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		infra.Redis = client
	}

	store, err := accessStore(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}
	return store, infra.Close, nil
}
