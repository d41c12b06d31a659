// internal/pkg/session/rate_limiter.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter counts requests per identity and endpoint in fixed windows.
type RateLimiter struct {
	client redis.Cmdable
}

func NewRateLimiter(client redis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow records one request and reports whether it is within maxRequests for
// the current window, along with the requests left.
func (r *RateLimiter) Allow(ctx context.Context, identityID int64, endpoint string, maxRequests int64, window time.Duration) (bool, int64, error) {
	key := fmt.Sprintf("billing:ratelimit:%d:%s", identityID, endpoint)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiration on first request
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	remaining := maxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= maxRequests, remaining, nil
}

// Reset clears the counter for an identity and endpoint
func (r *RateLimiter) Reset(ctx context.Context, identityID int64, endpoint string) error {
	key := fmt.Sprintf("billing:ratelimit:%d:%s", identityID, endpoint)
	return r.client.Del(ctx, key).Err()
}
