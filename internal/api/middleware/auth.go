package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/config"
	jwtutil "github.com/kelseyabreu/biomasters-tcg-sub012/pkg/jwt"
)

// Auth JWT 인증 미들웨어
func Auth(cfg *config.Config) gin.HandlerFunc {
	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)

	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization required",
			})
			c.Abort()
			return
		}

		// 토큰 검증
		claims, err := jwtManager.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// 검증 성공 - 플레이어 정보를 context에 저장
		c.Set("playerID", claims.PlayerID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// extractToken Authorization 헤더 또는 token 쿼리에서 토큰 추출.
// 브라우저 WebSocket은 헤더를 못 실어서 /ws는 쿼리 파라미터를 쓴다.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		// "Bearer <token>" 형식 파싱
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return c.Query("token")
}
