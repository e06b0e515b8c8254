// Package clienv builds the database, cache and logging dependencies shared by
// the CLI commands from the same environment the API server reads.
package clienv

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	platformlogging "github.com/zenGate-Global/schoolspace/platform/go/logging"
	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant/cache"
)

// Env holds the settings every command needs.
type Env struct {
	DatabaseURL  string   `env:"DATABASE_URL"`
	SharedSchema string   `env:"SHARED_SCHEMA" envDefault:"public"`
	RedisURL     string   `env:"REDIS_URL"`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"info"`
	Reserved     []string `env:"RESERVED_SUBDOMAINS" envDefault:"www,api,admin,platform,app" envSeparator:","`
}

// Load reads an optional .env file, then the process environment. A non-empty
// databaseURL flag wins over DATABASE_URL.
func Load(databaseURL string) (Env, error) {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("load environment: %w", err)
	}
	if databaseURL != "" {
		e.DatabaseURL = databaseURL
	}
	if e.DatabaseURL == "" {
		return Env{}, fmt.Errorf("database url required (--database-url or DATABASE_URL)")
	}
	if err := tenant.ValidateNamespace(e.SharedSchema); err != nil {
		return Env{}, fmt.Errorf("invalid SHARED_SCHEMA: %w", err)
	}
	return e, nil
}

// Deps are opened by Open and released by Close.
type Deps struct {
	Env       Env
	Logger    *zap.Logger
	Pool      *pgxpool.Pool
	Exec      *persistence.ScopedExecutor
	Directory *persistence.DirectoryStore
	// Cache is empty in the CLI; Broadcast uses it to publish invalidations to
	// running API instances.
	Cache *cache.Cache

	closers []func()
}

// Open connects to Postgres and, when REDIS_URL is set, to the invalidation bus.
func Open(ctx context.Context, e Env) (*Deps, error) {
	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "cli", Level: e.LogLevel, Console: true})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	d := &Deps{Env: e, Logger: logger}
	d.closers = append(d.closers, func() { _ = logger.Sync() })

	d.Pool, err = persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:     e.DatabaseURL,
		MaxConns:       4,
		SharedSchema:   e.SharedSchema,
		ResetOnRelease: true,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("init pool: %w", err)
	}
	d.closers = append(d.closers, func() { persistence.ClosePool(d.Pool) })

	d.Exec = persistence.NewScopedExecutor(persistence.ScopedExecutorConfig{
		Pool:         d.Pool,
		SharedSchema: e.SharedSchema,
		Logger:       logger,
	})
	d.Directory = persistence.NewDirectoryStore(d.Exec)

	var bus cache.Bus = cache.NopBus{}
	if e.RedisURL != "" {
		client, err := cache.DialRedis(ctx, e.RedisURL, 3, time.Second)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = client.Close() })
		bus = cache.NewRedisBus(client, "", logger)
	} else {
		logger.Warn("REDIS_URL not set; running API instances will see changes once their cache TTL expires")
	}

	d.Cache, err = cache.New(cache.Config{MaxEntries: 16, Bus: bus, Logger: logger})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.closers = append(d.closers, d.Cache.Close)
	return d, nil
}

// Close releases everything Open acquired, newest first.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
