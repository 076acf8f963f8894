package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/api"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/config"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/namespace"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/notify"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/queue"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/repository"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/service"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/websocket"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/worker"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/database"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/distributed"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/logger"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/ratelimit"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting BioMasters TCG Backend",
		"port", cfg.Port,
		"env", cfg.Env,
		"namespace", cfg.Namespace,
	)

	// 데이터베이스 연결
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	// Redis 연결
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", "error", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal("Failed to connect to Redis", "error", err)
	}
	cancelPing()
	logger.Info("Redis connection established")

	// 네임스페이스 리졸버 (배포/테스트 런 단위 키 격리)
	ns := namespace.New(cfg.Namespace)

	// WebSocket Hub 초기화 및 시작
	hub := websocket.NewHub(logger.L())
	go hub.Run()

	// 매치 알림 서비스 시작 (Redis Pub/Sub 구독)
	notifier := notify.NewService(redisClient, ns, hub, logger.L())
	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Second)
	if err := notifier.Start(startCtx); err != nil {
		cancelStart()
		logger.Fatal("Failed to start notification service", "error", err)
	}
	cancelStart()

	// Repository / Store 초기화
	queueStore := queue.NewStore(redisClient, ns)
	playerRepo := repository.NewPlayerRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Service 초기화
	matchmakingService := service.NewMatchmakingService(queueStore, playerRepo, cfg.RequeuePolicy, logger.L())
	sessionService := service.NewSessionService(sessionRepo, logger.L())

	// 매치메이킹 워커 시작
	lockManager := distributed.NewRedisLockManager(redisClient, "")
	mmWorker := worker.New(queueStore, sessionRepo, notifier, lockManager, ns, worker.Config{
		Interval:  cfg.MatchmakingInterval,
		LockTTL:   cfg.LockTTL,
		MaxWait:   cfg.MaxQueueWait,
		PoolLimit: cfg.PoolLimit,
	}, logger.L())
	mmWorker.Start()

	// 라우터 설정
	limiter := ratelimit.NewRedisRateLimiter(redisClient, ns.RateLimitKey(""), cfg.QueueRateLimit, cfg.QueueRateWindow)
	router := api.SetupRouter(cfg, api.Deps{
		Matchmaking: matchmakingService,
		Sessions:    sessionService,
		Hub:         hub,
		RateLimiter: limiter,
	})

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 서버 시작 (고루틴)
	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 진행 중인 워커 틱이 끝날 때까지 기다린 후 종료
	mmWorker.Stop()
	notifier.Stop()

	// 10초 타임아웃으로 종료
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
