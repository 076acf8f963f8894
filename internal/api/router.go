package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/api/handlers"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/api/middleware"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/config"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/service"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/websocket"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/ratelimit"
)

// Deps 라우터가 쓰는 의존성 (생성과 수명 관리는 main 소관)
type Deps struct {
	Matchmaking *service.MatchmakingService
	Sessions    *service.SessionService
	Hub         *websocket.Hub
	RateLimiter *ratelimit.RedisRateLimiter
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Handler 초기화
	matchmakingHandler := handlers.NewMatchmakingHandler(deps.Matchmaking)
	sessionHandler := handlers.NewSessionHandler(deps.Sessions)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// WebSocket endpoint (매치 알림 수신)
		api.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Matchmaking routes
		queue := api.Group("/matchmaking/queue", middleware.Auth(cfg))
		if deps.RateLimiter != nil {
			queue.Use(middleware.RedisRateLimit(middleware.RedisRateLimitConfig{
				Limiter: deps.RateLimiter,
				Limit:   cfg.QueueRateLimit,
				Window:  cfg.QueueRateWindow,
			}))
		}
		{
			queue.POST("", matchmakingHandler.FindMatch)
			queue.DELETE("/:mode", matchmakingHandler.CancelMatch)
			queue.GET("/:mode", matchmakingHandler.QueueStatus)
		}

		// Session routes (세션 생성은 워커 소관, 여기는 조회/준비 확인만)
		sessions := api.Group("/sessions", middleware.Auth(cfg))
		{
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.POST("/:id/ready", sessionHandler.Ready)
		}
	}

	return router
}
