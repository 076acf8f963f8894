package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/logger"
)

// Logger HTTP 요청 로깅 미들웨어.
// 인증 이후 핸들러가 playerID를 컨텍스트에 넣으므로 요청 완료 시점에 읽는다.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// 상태 폴링 엔드포인트는 소음이 커서 에러일 때만 남긴다
		status := c.Writer.Status()
		if path == "/health" && status < 400 {
			return
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if playerID := c.GetString("playerID"); playerID != "" {
			fields = append(fields, "playerId", playerID)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		if status >= 500 {
			logger.Error("HTTP Request", fields...)
			return
		}
		logger.Info("HTTP Request", fields...)
	}
}
