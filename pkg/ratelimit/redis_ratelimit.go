package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter Redis 기반 분산 Rate Limiter (Token Bucket 알고리즘).
// 인스턴스가 여러 개 떠 있어도 버킷 상태가 Redis에 있어 한도가 공유된다.
type RedisRateLimiter struct {
	client       *redis.Client
	keyPrefix    string
	defaultLimit int
	defaultTTL   time.Duration
}

// NewRedisRateLimiter Redis 기반 Rate Limiter 생성.
// 클라이언트는 주입받고 keyPrefix는 네임스페이스 리졸버가 만들어준 접두사를 쓴다.
func NewRedisRateLimiter(client *redis.Client, keyPrefix string, defaultLimit int, defaultTTL time.Duration) *RedisRateLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	if defaultLimit <= 0 {
		defaultLimit = 60
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}

	return &RedisRateLimiter{
		client:       client,
		keyPrefix:    keyPrefix,
		defaultLimit: defaultLimit,
		defaultTTL:   defaultTTL,
	}
}

// allowScript 토큰 리필 + 소비를 한 번에 (원자적)
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local tokens_key = key .. ":tokens"
	local timestamp_key = key .. ":timestamp"

	local tokens = tonumber(redis.call('GET', tokens_key))
	local last_update = tonumber(redis.call('GET', timestamp_key))

	-- 초기화 (첫 요청)
	if tokens == nil then
		tokens = limit
		last_update = now
	end

	-- 경과 시간에 따라 토큰 리필
	local elapsed = now - last_update
	local refill_rate = limit / window
	local new_tokens = math.min(limit, tokens + (elapsed * refill_rate))

	-- 토큰 소비
	local allowed = 0
	if new_tokens >= 1 then
		new_tokens = new_tokens - 1
		allowed = 1
	end

	redis.call('SET', tokens_key, new_tokens, 'EX', window * 2)
	redis.call('SET', timestamp_key, now, 'EX', window * 2)

	return {allowed, math.floor(new_tokens), last_update + window}
`)

// Allow 요청 허용 여부 확인. key는 대상 식별자 (playerID 또는 IP).
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := r.AllowWithInfo(ctx, key, limit, window)
	return allowed, err
}

// AllowWithInfo 요청 허용 여부와 상세 정보 반환
func (r *RedisRateLimiter) AllowWithInfo(ctx context.Context, key string, limit int, window time.Duration) (bool, *RateLimitInfo, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	if window <= 0 {
		window = r.defaultTTL
	}

	redisKey := r.keyPrefix + key
	now := time.Now().Unix()

	result, err := allowScript.Run(ctx, r.client, []string{redisKey}, limit, int(window.Seconds()), now).Result()
	if err != nil {
		return false, nil, fmt.Errorf("redis script execution failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return false, nil, fmt.Errorf("invalid script result")
	}

	allowed, _ := resultSlice[0].(int64)
	remaining, _ := resultSlice[1].(int64)
	resetTime, _ := resultSlice[2].(int64)

	info := &RateLimitInfo{
		Limit:     limit,
		Remaining: int(remaining),
		ResetTime: time.Unix(resetTime, 0),
	}

	return allowed == 1, info, nil
}

// Reset 특정 키의 Rate Limit 초기화
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	redisKey := r.keyPrefix + key

	pipe := r.client.Pipeline()
	pipe.Del(ctx, redisKey+":tokens")
	pipe.Del(ctx, redisKey+":timestamp")
	_, err := pipe.Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}

	return nil
}

// RateLimitInfo Rate Limit 상세 정보
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"reset_time"`
}
