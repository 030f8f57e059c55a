package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trailhead/api/internal/config"
)

// RateLimit applies a fixed-window per-IP limit backed by redis. The
// window key expires on first increment; when redis is unreachable the
// request is let through rather than failing closed.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s", c.ClientIP())
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}

		if count == 1 {
			if err := client.Expire(ctx, key, cfg.Window).Err(); err != nil {
				log.Warn().Err(err).Msg("rate limiter expire failed")
			}
		}

		if count > int64(cfg.Max) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests from this IP, please try again later",
			})
			return
		}

		c.Next()
	}
}
