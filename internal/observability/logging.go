// Package observability holds the tracer provider, the Prometheus
// collectors and the per-table repository logger.
package observability

import (
	"context"
	"log/slog"
)

// RepoLogger writes repository events tagged with their table.
type RepoLogger struct {
	table  string
	logger *slog.Logger
}

// NewRepoLogger binds table to logger. A nil logger resolves to
// slog.Default() on every call, so a default installed later applies.
func NewRepoLogger(table string, logger *slog.Logger) *RepoLogger {
	return &RepoLogger{table: table, logger: logger}
}

func (l *RepoLogger) with(operation string) *slog.Logger {
	lg := l.logger
	if lg == nil {
		lg = slog.Default()
	}
	return lg.With("table", l.table, "operation", operation)
}

// LogWrite records a committed mutation at debug level.
func (l *RepoLogger) LogWrite(ctx context.Context, operation string, attrs ...any) {
	l.with(operation).DebugContext(ctx, "repository write", attrs...)
}

func (l *RepoLogger) LogError(ctx context.Context, operation string, err error) {
	l.with(operation).ErrorContext(ctx, "repository error", "error", err)
}
