package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// RequeuePolicy 이미 큐에 있는 플레이어가 다시 findMatch를 호출했을 때의 동작
type RequeuePolicy string

const (
	RequeueReplace RequeuePolicy = "replace" // 기존 티켓 갱신 (기본값)
	RequeueReject  RequeuePolicy = "reject"  // AlreadyInQueue 에러 반환
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Namespace (배포/테스트 런 단위 키 접두사)
	Namespace string

	// Matchmaking
	MatchmakingInterval time.Duration
	LockTTL             time.Duration
	MaxQueueWait        time.Duration // 0이면 스테일 티켓 정리 안 함
	RequeuePolicy       RequeuePolicy
	PoolLimit           int // 틱당 평가할 최대 후보 수

	// Rate limit
	QueueRateLimit  int
	QueueRateWindow time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:           getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:       parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		Namespace:           getEnv("NAMESPACE", "biomasters"),
		MatchmakingInterval: parseDuration(getEnv("MATCHMAKING_INTERVAL", "5s"), 5*time.Second),
		LockTTL:             parseDuration(getEnv("MATCHMAKING_LOCK_TTL", "10s"), 10*time.Second),
		MaxQueueWait:        parseDuration(getEnv("MATCHMAKING_MAX_WAIT", "10m"), 10*time.Minute),
		RequeuePolicy:       RequeuePolicy(getEnv("MATCHMAKING_REQUEUE_POLICY", string(RequeueReplace))),
		PoolLimit:           getEnvInt("MATCHMAKING_POOL_LIMIT", 32),
		QueueRateLimit:      getEnvInt("QUEUE_RATE_LIMIT", 30),
		QueueRateWindow:     parseDuration(getEnv("QUEUE_RATE_WINDOW", "1m"), time.Minute),
		CORSAllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
	}

	if cfg.RequeuePolicy != RequeueReplace && cfg.RequeuePolicy != RequeueReject {
		cfg.RequeuePolicy = RequeueReplace
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}
