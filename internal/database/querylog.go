package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stackit/internal/middleware"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// queryLogger routes GORM output through middleware.Logger so SQL records
// carry the request and trace ids of the calling context.
type queryLogger struct {
	level logger.LogLevel
	slow  time.Duration
}

// NewQueryLogger logs failed queries, and slow ones once level reaches
// logger.Warn. At logger.Info every statement is logged at debug.
func NewQueryLogger(level logger.LogLevel, slow time.Duration) logger.Interface {
	return queryLogger{level: level, slow: slow}
}

func (q queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	q.level = level
	return q
}

func (q queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.level >= logger.Info {
		middleware.Logger.InfoContext(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (q queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	if q.level >= logger.Warn {
		middleware.Logger.WarnContext(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (q queryLogger) Error(ctx context.Context, msg string, args ...any) {
	if q.level >= logger.Error {
		middleware.Logger.ErrorContext(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

// Trace ignores ErrRecordNotFound; lookups that miss are not failures here.
func (q queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && elapsed > q.slow

	if !(failed && q.level >= logger.Error) && !(slow && q.level >= logger.Warn) && q.level < logger.Info {
		return
	}
	sql, rows := fc()
	attrs := []any{"sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds()}
	switch {
	case failed:
		middleware.Logger.ErrorContext(ctx, "query failed", append(attrs, "error", err)...)
	case slow:
		middleware.Logger.WarnContext(ctx, "slow query", attrs...)
	default:
		middleware.Logger.DebugContext(ctx, "query", attrs...)
	}
}
