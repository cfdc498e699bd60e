package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hospital-app-server/internal/ratelimit"
	"hospital-app-server/internal/utils"
)

// Limiter is the counter store consulted per request.
type Limiter interface {
	Allow(ctx context.Context, resource string) (ratelimit.Result, error)
}

// RateLimit rejects clients over their window quota with 429. When the
// counter store is unreachable requests are let through.
func RateLimit(l Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfterSecs))
			utils.TooManyRequests(c, res.RetryAfterSecs)
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}
