package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RateLimit 按客户端 IP 限流，超出返回 429
//
// 使用示例:
//
//	limiter := middleware.NewClientLimiter(cfg.Server.RateLimitPerMinute)
//	r.Use(middleware.RateLimit(limiter))
func RateLimit(limiter *ClientLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 预检请求不计数
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}
