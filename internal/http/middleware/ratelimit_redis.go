package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter backed by redis INCR/EXPIRE, so
// limits are shared by every app instance. Without a redis client it counts
// in memory.
type RateLimiter struct {
	rdb *redis.Client
	mem *memoryWindows
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb, mem: newMemoryWindows()}
}

// ByIP limits requests per client IP.
// key format: rl:<window_seconds>:<ip>
func (l *RateLimiter) ByIP(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		l.limit(c, key, c.FullPath(), maxRequests, window)
	}
}

// ByUser limits requests per authenticated user. JWT must run first.
// key format: rl_user:<user_id>:<window_seconds>
func (l *RateLimiter) ByUser(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		key := "rl_user:" + userID.String() + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		l.limit(c, key, "user:"+c.FullPath(), maxRequests, window)
	}
}

func (l *RateLimiter) limit(c *gin.Context, key, endpoint string, maxRequests int, window time.Duration) {
	var val int64
	if l.rdb == nil {
		val = l.mem.incr(key, window)
	} else {
		ctx := context.Background()
		n, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if n == 1 {
			l.rdb.Expire(ctx, key, window)
		}
		val = n
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

	if val > int64(maxRequests) {
		RLBlocked.WithLabelValues(endpoint).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "rate limit exceeded",
			"retry_after": int(window.Seconds()),
		})
		return
	}

	RLRequests.WithLabelValues(endpoint).Inc()
	c.Next()
}
