// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"stackit/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// instrumentHook wraps every command in a client span and counts failures.
// A redis.Nil reply is a cache miss, not a failure.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := observability.StartRedisSpan(ctx, cmd.Name())
		err := next(ctx, cmd)
		observability.EndSpan(span, failure(cmd.Name(), err))
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := observability.StartRedisSpan(ctx, "pipeline")
		span.SetAttributes(attribute.Int("db.redis.commands", len(cmds)))
		err := next(ctx, cmds)
		observability.EndSpan(span, failure("pipeline", err))
		return err
	}
}

func failure(op string, err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	observability.RedisErrorRate.WithLabelValues(op).Inc()
	return err
}

// InitRedis connects to addr (host:port or redis:// URL). It returns nil when
// Redis is unreachable; callers then run without cache and with in-process limits.
func InitRedis(addr string) *redis.Client {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			slog.Warn("invalid REDIS_URL, continuing without cache", slog.String("error", err.Error()))
			return nil
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	client.AddHook(instrumentHook{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, continuing without cache", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	slog.Info("redis connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
	return client
}
