package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/ratelimit"
)

// RedisRateLimitConfig Redis 기반 Rate Limit 설정
type RedisRateLimitConfig struct {
	Limiter *ratelimit.RedisRateLimiter
	Limit   int                       // 윈도우 내 최대 요청 수
	Window  time.Duration             // 윈도우 크기
	KeyFunc func(*gin.Context) string // 키 추출 함수
}

// DefaultKeyFunc 인증된 경우 playerID, 아니면 IP 주소
func DefaultKeyFunc(c *gin.Context) string {
	if playerID, exists := c.Get("playerID"); exists {
		return fmt.Sprintf("player:%v", playerID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// RedisRateLimit Redis 기반 분산 Rate Limiting 미들웨어.
// 버킷 상태가 Redis에 있어 인스턴스 수와 무관하게 한도가 공유된다.
// Redis 장애 시에는 요청을 막지 않는다 (rate limit은 가용성보다 중요하지 않음).
func RedisRateLimit(config RedisRateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		allowed, info, err := config.Limiter.AllowWithInfo(c.Request.Context(), key, config.Limit, config.Window)
		if err != nil {
			// Redis 장애 시에는 통과시킨다 (fail-open)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
