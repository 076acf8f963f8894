package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/namespace"
)

// Store 모드별 매치메이킹 대기열 (Redis Sorted Set + Hash).
// Sorted Set: playerId를 enqueuedAt 점수로 정렬, Hash: playerId -> 티켓 JSON.
// 모든 변경은 Lua 스크립트 하나로 수행되어 동시 접근에도 원자적이다.
type Store struct {
	client *redis.Client
	ns     *namespace.Resolver
}

// NewStore 대기열 저장소 생성
func NewStore(client *redis.Client, ns *namespace.Resolver) *Store {
	return &Store{client: client, ns: ns}
}

// enqueueScript 기존 티켓이 있으면 교체 (제거-삽입 사이 공백 없이 한 번에)
var enqueueScript = redis.NewScript(`
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
	return 1
`)

// cancelScript 티켓 제거, 제거된 개수 반환 (없으면 0)
var cancelScript = redis.NewScript(`
	local removed = redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[1])
	return removed
`)

// peekScript 대기 순서대로 티켓 JSON 조회 (제거하지 않음)
var peekScript = redis.NewScript(`
	local ids = redis.call('ZRANGE', KEYS[1], ARGV[1], ARGV[2])
	local out = {}
	for i, id in ipairs(ids) do
		local data = redis.call('HGET', KEYS[2], id)
		if data then
			out[#out + 1] = data
		end
	end
	return out
`)

// removeManyScript 지정한 티켓만 제거, 실제로 제거된 티켓 JSON 반환.
// 요청 수보다 적게 반환되면 그 사이에 취소가 끼어든 것이다.
var removeManyScript = redis.NewScript(`
	local out = {}
	for i, id in ipairs(ARGV) do
		if redis.call('ZREM', KEYS[1], id) == 1 then
			local data = redis.call('HGET', KEYS[2], id)
			if data then
				out[#out + 1] = data
			end
			redis.call('HDEL', KEYS[2], id)
		end
	end
	return out
`)

// restoreScript 제거했던 티켓을 원래 enqueuedAt 그대로 되돌림
var restoreScript = redis.NewScript(`
	local n = #ARGV / 3
	for i = 0, n - 1 do
		local id = ARGV[i * 3 + 1]
		local score = ARGV[i * 3 + 2]
		local data = ARGV[i * 3 + 3]
		redis.call('ZADD', KEYS[1], score, id)
		redis.call('HSET', KEYS[2], id, data)
	end
	return n
`)

// sweepScript 기준 시각 이전에 등록된 티켓 일괄 제거, 제거된 ID 반환
var sweepScript = redis.NewScript(`
	local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
	if #ids > 0 then
		redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
		for i, id in ipairs(ids) do
			redis.call('HDEL', KEYS[2], id)
		end
	end
	return ids
`)

// clearScript 네임스페이스 접두사 아래 모든 키 삭제
var clearScript = redis.NewScript(`
	local keys = redis.call('KEYS', ARGV[1])
	for i, key in ipairs(keys) do
		redis.call('DEL', key)
	end
	return #keys
`)

// Enqueue 티켓 삽입. 같은 (playerId, mode) 티켓이 있으면 원자적으로 교체된다.
func (s *Store) Enqueue(ctx context.Context, entry models.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	keys := []string{s.ns.QueueKey(entry.GameMode), s.ns.EntryKey(entry.GameMode)}
	if err := enqueueScript.Run(ctx, s.client, keys,
		entry.PlayerID, entry.EnqueuedAt, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}
	return nil
}

// Cancel 티켓 제거. 없으면 에러가 아니라 false 반환.
func (s *Store) Cancel(ctx context.Context, mode models.GameMode, playerID string) (bool, error) {
	keys := []string{s.ns.QueueKey(mode), s.ns.EntryKey(mode)}
	removed, err := cancelScript.Run(ctx, s.client, keys, playerID).Int()
	if err != nil {
		return false, fmt.Errorf("failed to cancel: %w", err)
	}
	return removed > 0, nil
}

// Contains 해당 플레이어의 티켓 존재 여부
func (s *Store) Contains(ctx context.Context, mode models.GameMode, playerID string) (bool, error) {
	err := s.client.ZScore(ctx, s.ns.QueueKey(mode), playerID).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check entry: %w", err)
	}
	return true, nil
}

// Position 대기 순번 (0부터), 없으면 -1
func (s *Store) Position(ctx context.Context, mode models.GameMode, playerID string) (int64, error) {
	rank, err := s.client.ZRank(ctx, s.ns.QueueKey(mode), playerID).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("failed to get position: %w", err)
	}
	return rank, nil
}

// PeekRange 등록 순서 오름차순으로 최대 count개 티켓 조회 (제거하지 않음)
func (s *Store) PeekRange(ctx context.Context, mode models.GameMode, start, count int) ([]models.QueueEntry, error) {
	if count <= 0 {
		return nil, nil
	}

	keys := []string{s.ns.QueueKey(mode), s.ns.EntryKey(mode)}
	result, err := peekScript.Run(ctx, s.client, keys, start, start+count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}

	return decodeEntries(result)
}

// RemoveMany 지정한 티켓들을 원자적으로 제거하고 실제 제거된 티켓을 반환.
// 반환 개수가 요청보다 적으면 peek 이후 누군가 취소한 것이므로 호출자는
// 매치 구성을 중단하고 Restore로 되돌려야 한다.
func (s *Store) RemoveMany(ctx context.Context, mode models.GameMode, playerIDs []string) ([]models.QueueEntry, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}

	keys := []string{s.ns.QueueKey(mode), s.ns.EntryKey(mode)}
	args := make([]interface{}, len(playerIDs))
	for i, id := range playerIDs {
		args[i] = id
	}

	result, err := removeManyScript.Run(ctx, s.client, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to remove entries: %w", err)
	}

	return decodeEntries(result)
}

// Restore 제거했던 티켓을 원래 enqueuedAt 점수 그대로 복원
func (s *Store) Restore(ctx context.Context, mode models.GameMode, entries []models.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	keys := []string{s.ns.QueueKey(mode), s.ns.EntryKey(mode)}
	args := make([]interface{}, 0, len(entries)*3)
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		args = append(args, entry.PlayerID, strconv.FormatInt(entry.EnqueuedAt, 10), string(data))
	}

	if err := restoreScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to restore entries: %w", err)
	}
	return nil
}

// SweepStale cutoff(밀리초) 이전에 등록된 티켓 일괄 제거, 제거된 플레이어 ID 반환
func (s *Store) SweepStale(ctx context.Context, mode models.GameMode, cutoff int64) ([]string, error) {
	keys := []string{s.ns.QueueKey(mode), s.ns.EntryKey(mode)}
	result, err := sweepScript.Run(ctx, s.client, keys, cutoff).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to sweep stale entries: %w", err)
	}

	raw, ok := result.([]interface{})
	if !ok {
		return nil, nil
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Size 현재 대기열 크기
func (s *Store) Size(ctx context.Context, mode models.GameMode) (int64, error) {
	return s.client.ZCard(ctx, s.ns.QueueKey(mode)).Result()
}

// ClearNamespace 현재 네임스페이스의 모든 키를 원자적으로 삭제.
// 다른 네임스페이스는 건드리지 않는다 (동시 테스트 런 격리용).
func (s *Store) ClearNamespace(ctx context.Context) error {
	if err := clearScript.Run(ctx, s.client, []string{}, s.ns.Pattern()).Err(); err != nil {
		return fmt.Errorf("failed to clear namespace: %w", err)
	}
	return nil
}

func decodeEntries(result interface{}) ([]models.QueueEntry, error) {
	raw, ok := result.([]interface{})
	if !ok {
		return nil, nil
	}

	entries := make([]models.QueueEntry, 0, len(raw))
	for _, v := range raw {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
