package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"stackit/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Quota is a named request budget granted to each caller per window.
type Quota struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of counting one request against a quota.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Throttle enforces quotas. Counters live in Redis when a client is given
// so that every API instance shares them; otherwise each process keeps
// token buckets of its own.
type Throttle struct {
	rdb        *redis.Client
	disabled   bool
	failClosed bool

	mu        sync.Mutex
	buckets   map[string]*localBucket
	lastSweep time.Time
	clock     func() time.Time
}

// localBucket is a caller's token bucket. A bucket idle for a whole window
// has refilled, so dropping it loses nothing.
type localBucket struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// sweepEvery spaces out scans for idle local buckets.
const sweepEvery = time.Minute

// ThrottleOption customizes a Throttle.
type ThrottleOption func(*Throttle)

// FailClosed rejects requests with 503 while Redis is unreachable instead of
// letting them through.
func FailClosed() ThrottleOption {
	return func(t *Throttle) { t.failClosed = true }
}

// NewThrottle builds a Throttle for the given environment. Quotas are not
// enforced in test, development and stress environments.
func NewThrottle(rdb *redis.Client, env string, opts ...ThrottleOption) *Throttle {
	t := &Throttle{rdb: rdb, buckets: map[string]*localBucket{}, clock: time.Now}
	switch env {
	case "", "test", "development", "stress":
		t.disabled = true
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Take counts one request by caller against q.
func (t *Throttle) Take(ctx context.Context, q Quota, caller string) (Decision, error) {
	if t.disabled {
		return Decision{Allowed: true, Remaining: q.Limit}, nil
	}
	if q.Limit <= 0 || q.Window <= 0 {
		return Decision{}, fmt.Errorf("quota %s needs a positive limit and window", q.Name)
	}
	key := "rl:" + q.Name + ":" + caller
	if t.rdb == nil {
		return t.takeLocal(key, q), nil
	}
	return t.takeShared(ctx, key, q)
}

// takeShared runs a fixed window counter: INCR starts the window and the key
// expires when it closes.
func (t *Throttle) takeShared(ctx context.Context, key string, q Quota) (Decision, error) {
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := t.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := t.rdb.PExpire(ctx, key, q.Window).Err(); err != nil {
			return Decision{}, err
		}
		remaining = q.Window
	}

	count := int(incr.Val())
	if count > q.Limit {
		return Decision{RetryAfter: remaining}, nil
	}
	return Decision{Allowed: true, Remaining: q.Limit - count}, nil
}

func (t *Throttle) takeLocal(key string, q Quota) Decision {
	now := t.clock()

	t.mu.Lock()
	if now.Sub(t.lastSweep) >= sweepEvery {
		t.sweep(now)
	}
	bucket, ok := t.buckets[key]
	if !ok {
		bucket = &localBucket{
			limiter: rate.NewLimiter(rate.Every(q.Window/time.Duration(q.Limit)), q.Limit),
			window:  q.Window,
		}
		t.buckets[key] = bucket
	}
	bucket.lastSeen = now
	t.mu.Unlock()

	r := bucket.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay}
	}
	return Decision{Allowed: true, Remaining: int(bucket.limiter.TokensAt(now))}
}

// sweep drops buckets idle for at least their window. t.mu must be held.
func (t *Throttle) sweep(now time.Time) {
	for key, b := range t.buckets {
		if now.Sub(b.lastSeen) >= b.window {
			delete(t.buckets, key)
		}
	}
	t.lastSweep = now
}

// Limit enforces q per authenticated user, or per client IP for anonymous
// requests, and reports the budget in X-RateLimit-* headers.
func (t *Throttle) Limit(q Quota) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			caller = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		d, err := t.Take(c.UserContext(), q, caller)
		if err != nil {
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
				"quota", q.Name, "fail_closed", t.failClosed, "error", err)
			if t.failClosed {
				return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
					Error: "rate limit unavailable",
				})
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
