// Package bootstrap wires the process-wide runtime shared by CLI commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"stackit/internal/cache"
	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/middleware"
	"stackit/internal/observability"
	"stackit/internal/repository"
	"stackit/internal/seed"
	"stackit/internal/service"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// LoadTagCatalog upserts the embedded tag catalog after connecting.
	LoadTagCatalog bool
	// SkipRedis leaves the Redis client nil, for commands that only touch SQL.
	SkipRedis bool
}

// Runtime holds the connections a command needs.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime configures logging and tracing, connects to the database and
// optionally to Redis. A nil Redis client means Redis was skipped or
// unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "stackit-api",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{DB: db, shutdownTracing: shutdown}
	if !opts.SkipRedis {
		rt.Redis = cache.InitRedis(cfg.RedisURL)
	}

	if opts.LoadTagCatalog {
		tags := service.NewTagService(repository.NewTagRepository(db, cache.NewStore(rt.Redis)))
		created, err := seed.LoadTags(ctx, tags)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("load tag catalog: %w", err)
		}
		middleware.Logger.InfoContext(ctx, "tag catalog loaded", "new_tags", created)
	}

	return rt, nil
}

// Flush exports buffered spans. Serve uses it after the server has closed
// the connections itself.
func (r *Runtime) Flush(ctx context.Context) error {
	if r.shutdownTracing == nil {
		return nil
	}
	return r.shutdownTracing(ctx)
}

// Close releases every connection and flushes traces.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if sqlDB, err := r.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	if r.Redis != nil {
		errs = append(errs, r.Redis.Close())
	}
	if r.shutdownTracing != nil {
		errs = append(errs, r.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
