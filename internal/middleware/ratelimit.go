package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitMax    = 30
	rateLimitWindow = time.Second
)

// rateLimitStore is the slice of the redis client the limiter needs.
type rateLimitStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimit returns a middleware enforcing a fixed-window limit. This runs
// after Auth, so the window is keyed per authenticated caller; requests on
// unauthenticated routes fall back to the client IP. Redis being down fails
// open: generation already has the credit ledger as a harder backstop.
func RateLimit(rdb rateLimitStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := UserID(c)
		if subject == "" {
			subject = c.ClientIP()
		}
		if subject == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("af:rate_limit:%s:%d", subject, time.Now().Unix())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > rateLimitMax {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      0,
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}

		c.Next()
	}
}
