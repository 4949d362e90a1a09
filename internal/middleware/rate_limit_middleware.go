package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type RateLimitMiddleware struct {
	redisClient *redis.Client
	config      *RateLimitConfig

	// Local fallback used when Redis is unavailable, so an outage
	// degrades to per-instance limiting instead of no limiting.
	fallback *rate.Limiter
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

func NewRateLimitMiddleware(redisClient *redis.Client, config *RateLimitConfig) *RateLimitMiddleware {
	if config == nil {
		config = &RateLimitConfig{
			RequestsPerMinute: 120,
			Burst:             20,
		}
	}

	return &RateLimitMiddleware{
		redisClient: redisClient,
		config:      config,
		fallback:    rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60), config.Burst),
	}
}

// Limit enforces a per-IP requests-per-minute cap backed by Redis counters.
func (r *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", c.ClientIP(), time.Now().Format("200601021504"))

		pipe := r.redisClient.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).Warn("Rate limit counter unavailable, using local limiter")
			if !r.fallback.Allow() {
				r.reject(c)
				return
			}
			c.Next()
			return
		}

		count := incr.Val()
		remaining := int64(r.config.RequestsPerMinute) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(r.config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(r.config.RequestsPerMinute) {
			r.reject(c)
			return
		}

		c.Next()
	}
}

func (r *RateLimitMiddleware) reject(c *gin.Context) {
	c.Header("Retry-After", "60")
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":   "Rate limit exceeded",
		"message": "too many requests, try again later",
	})
}
