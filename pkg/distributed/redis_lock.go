package distributed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// RedisLock Redis 기반 분산 락. 소유 토큰이 일치할 때만 해제/연장 가능.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// RedisLockManager Redis 분산 락 관리자
type RedisLockManager struct {
	client *redis.Client
	owner  string // 인스턴스 식별자, 락 토큰 접두사
}

// NewRedisLockManager Redis Lock Manager 생성
func NewRedisLockManager(client *redis.Client, owner string) *RedisLockManager {
	if owner == "" {
		owner = uuid.New().String()
	}
	return &RedisLockManager{client: client, owner: owner}
}

// Owner 관리자의 인스턴스 식별자
func (m *RedisLockManager) Owner() string {
	return m.owner
}

// Acquire 분산 락 획득 시도. 이미 잡혀 있으면 ErrLockNotAcquired.
// TTL이 지나면 락은 자동으로 풀린다 (획득 인스턴스가 죽어도 복구됨).
func (m *RedisLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (*RedisLock, error) {
	token := fmt.Sprintf("%s:%s", m.owner, uuid.New().String())

	// SET NX (Not Exists) 명령으로 원자적 락 획득
	success, err := m.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrLockNotAcquired
	}

	return &RedisLock{
		client: m.client,
		key:    key,
		token:  token,
		ttl:    ttl,
	}, nil
}

// releaseScript 자신이 획득한 락만 해제
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// extendScript 자신이 획득한 락만 TTL 연장
var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Release 락 해제. 이미 만료되어 다른 소유자가 잡았으면 ErrLockNotHeld.
func (l *RedisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	return nil
}

// Extend 락 TTL 연장
func (l *RedisLock) Extend(ctx context.Context, extension time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, extension.Milliseconds()).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	l.ttl = extension
	return nil
}

// IsHeld 락이 아직 자신의 소유인지 확인
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return value == l.token, nil
}
