// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"billing-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Limiter is the per-identity request counter
type Limiter interface {
	Allow(ctx context.Context, identityID int64, endpoint string, maxRequests int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps how often one identity may call an endpoint. It must run
// after Auth(). A nil limiter disables the check; limiter failures let the
// request through.
func RateLimit(limiter Limiter, endpoint string, maxRequests int64, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		identityID, ok := GetIdentityID(c)
		if !ok {
			response.Unauthorized(c, "authentication required")
			return
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), identityID, endpoint, maxRequests, window)
		if err != nil {
			logger.Warn("rate limit check failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			response.Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}

		c.Next()
	}
}
