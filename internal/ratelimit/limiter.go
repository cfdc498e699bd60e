package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter is a fixed-window counter stored in Redis with a TTL equal to the window.
type Limiter struct {
	redis  redis.Cmdable
	log    *zap.Logger
	group  string
	max    int
	window time.Duration
	now    func() time.Time
}

// Result reports allowance and, when denied, seconds until the next window.
type Result struct {
	Allowed        bool
	Remaining      int
	RetryAfterSecs int
}

// New builds a Limiter for group. max <= 0 disables limiting.
func New(client redis.Cmdable, log *zap.Logger, group string, max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{
		redis:  client,
		log:    log,
		group:  strings.ToUpper(strings.TrimSpace(group)),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow counts one request for resource in the current window.
func (l *Limiter) Allow(ctx context.Context, resource string) (Result, error) {
	if l.max <= 0 {
		return Result{Allowed: true}, nil
	}
	resource = strings.ToLower(strings.TrimSpace(resource))
	windowSec := int64(l.window / time.Second)
	if windowSec <= 0 {
		windowSec = 1
	}

	now := l.now().UTC()
	windowID := now.Unix() / windowSec
	key := fmt.Sprintf("%s:%s:%d", l.group, resource, windowID)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Duration(windowSec)*time.Second+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Error("ratelimit increment failed", zap.String("key", key), zap.Error(err))
		return Result{}, err
	}

	count := int(incr.Val())
	if count > l.max {
		nextWindowStart := (windowID + 1) * windowSec
		return Result{Allowed: false, RetryAfterSecs: int(nextWindowStart-now.Unix()) + 1}, nil
	}
	return Result{Allowed: true, Remaining: l.max - count}, nil
}
