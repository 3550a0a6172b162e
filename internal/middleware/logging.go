// Package middleware provides the Fiber middleware stack and the shared structured logger.
package middleware

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the process logger. ConfigureLogger swaps it once the
// configuration is loaded.
var Logger = NewLogger(os.Stdout, os.Getenv("APP_ENV"), "info")

type scopeKey struct{}

// scope carries the request fields attached to every log record.
type scope struct {
	requestID string
	userID    uint
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithRequestID tags ctx with the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.requestID = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithUserID tags ctx so that log records carry the caller.
func WithUserID(ctx context.Context, userID uint) context.Context {
	s := scopeFrom(ctx)
	s.userID = userID
	return context.WithValue(ctx, scopeKey{}, s)
}

// scopedHandler appends request fields and the active span's ids.
type scopedHandler struct {
	slog.Handler
}

func (h scopedHandler) Handle(ctx context.Context, r slog.Record) error {
	s := scopeFrom(ctx)
	if s.requestID != "" {
		r.AddAttrs(slog.String("request_id", s.requestID))
	}
	if s.userID != 0 {
		r.AddAttrs(slog.Uint64("user_id", uint64(s.userID)))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h scopedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return scopedHandler{h.Handler.WithAttrs(attrs)}
}

func (h scopedHandler) WithGroup(name string) slog.Handler {
	return scopedHandler{h.Handler.WithGroup(name)}
}

// NewLogger writes JSON in production and logfmt-style text elsewhere.
// Unknown levels fall back to info.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	var lvl slog.Level
	if strings.EqualFold(strings.TrimSpace(level), "warning") {
		lvl = slog.LevelWarn
	} else if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if env == "production" || env == "prod" {
		return slog.New(scopedHandler{slog.NewJSONHandler(w, opts)})
	}
	return slog.New(scopedHandler{slog.NewTextHandler(w, opts)})
}

// ConfigureLogger replaces Logger and the slog default.
func ConfigureLogger(env, level string) {
	Logger = NewLogger(os.Stdout, strings.ToLower(env), level)
	slog.SetDefault(Logger)
}

// RequestScope copies the request id assigned by the requestid middleware
// into the user context.
func RequestScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(WithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

// AccessLog writes one record per request: errors for 5xx and handler
// failures, warnings for 4xx.
func AccessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		attrs := []any{
			"method", c.Method(),
			"route", c.Route().Path,
			"path", c.Path(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
			"bytes", len(c.Response().Body()),
		}
		ctx := c.UserContext()
		switch {
		case err != nil:
			Logger.ErrorContext(ctx, "request failed", append(attrs, "error", err)...)
		case status >= fiber.StatusInternalServerError:
			Logger.ErrorContext(ctx, "request failed", attrs...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "request rejected", attrs...)
		default:
			Logger.InfoContext(ctx, "request served", attrs...)
		}
		return err
	}
}
