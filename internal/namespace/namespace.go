package namespace

import (
	"fmt"
	"strings"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
)

// Resolver 논리 배포(프로덕션/테스트 런) 단위 키 접두사 해석기.
// 모든 Redis 키는 여기를 거쳐야 네임스페이스 간 충돌이 없다.
type Resolver struct {
	prefix string
}

// New Resolver 생성. 접두사는 비어 있을 수 없다.
func New(prefix string) *Resolver {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "default"
	}
	return &Resolver{prefix: prefix}
}

// Prefix 현재 접두사
func (r *Resolver) Prefix() string {
	return r.prefix
}

// QueueKey 모드별 대기열 Sorted Set 키
func (r *Resolver) QueueKey(mode models.GameMode) string {
	return fmt.Sprintf("%s:mm:queue:%s", r.prefix, mode)
}

// EntryKey 모드별 티켓 본문 Hash 키
func (r *Resolver) EntryKey(mode models.GameMode) string {
	return fmt.Sprintf("%s:mm:entry:%s", r.prefix, mode)
}

// LockKey 모드별 워커 분산 락 키
func (r *Resolver) LockKey(mode models.GameMode) string {
	return fmt.Sprintf("%s:mm:lock:%s", r.prefix, mode)
}

// EventChannel 매치 성립 이벤트 Pub/Sub 채널
func (r *Resolver) EventChannel() string {
	return fmt.Sprintf("%s:mm:events", r.prefix)
}

// RateLimitKey Rate Limiter 키 접두사
func (r *Resolver) RateLimitKey(id string) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, id)
}

// Pattern 네임스페이스 전체 삭제용 키 패턴
func (r *Resolver) Pattern() string {
	return r.prefix + ":*"
}
