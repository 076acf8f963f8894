package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/namespace"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/queue"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/distributed"
)

// fakeSessionStore 생성된 세션을 기록만 하는 저장소
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions []*models.GameSession
	err      error
}

func (f *fakeSessionStore) CreateSession(_ context.Context, session *models.GameSession) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeSessionStore) created() []*models.GameSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.GameSession(nil), f.sessions...)
}

// fakeNotifier 알림 대상 플레이어 ID 기록
type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
}

func (f *fakeNotifier) Notify(_ context.Context, playerID, _ string, _ interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, playerID)
	return nil
}

func (f *fakeNotifier) players() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notified...)
}

type workerFixture struct {
	worker   *Worker
	store    *queue.Store
	sessions *fakeSessionStore
	notifier *fakeNotifier
	locks    *distributed.RedisLockManager
	ns       *namespace.Resolver
}

func setupWorker(t *testing.T, cfg Config, wrap func(QueueStore) QueueStore) *workerFixture {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ns := namespace.New("test")
	store := queue.NewStore(client, ns)
	sessions := &fakeSessionStore{}
	notifier := &fakeNotifier{}
	locks := distributed.NewRedisLockManager(client, "test-worker")

	var qs QueueStore = store
	if wrap != nil {
		qs = wrap(store)
	}

	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.TickTimeout == 0 {
		cfg.TickTimeout = 5 * time.Second
	}

	return &workerFixture{
		worker:   New(qs, sessions, notifier, locks, ns, cfg, zap.NewNop()),
		store:    store,
		sessions: sessions,
		notifier: notifier,
		locks:    locks,
		ns:       ns,
	}
}

func enqueuePlayers(t *testing.T, store *queue.Store, mode models.GameMode, ratings map[string]int) {
	at := int64(1000)
	for _, id := range sortedKeys(ratings) {
		require.NoError(t, store.Enqueue(context.Background(), models.QueueEntry{
			PlayerID:   id,
			GameMode:   mode,
			Rating:     ratings[id],
			EnqueuedAt: at,
		}))
		at += 100
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestWorker_RunTick_CreatesBalancedMatch(t *testing.T) {
	f := setupWorker(t, Config{}, nil)
	ctx := context.Background()

	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{
		"p1": 1300, "p2": 1280, "p3": 1320, "p4": 1290,
	})

	f.worker.RunTick()

	sessions := f.sessions.created()
	require.Len(t, sessions, 1)
	session := sessions[0]

	assert.Equal(t, models.ModeTeam2v2, session.GameMode)
	assert.Equal(t, models.SessionStatusWaiting, session.Status)
	assert.Len(t, session.Players, 4)
	for _, p := range session.Players {
		assert.False(t, p.Ready)
	}

	// 팀 평균 레이팅 차이는 허용 편차 미만이어야 함
	byTeam := map[string][]int{}
	for _, p := range session.Players {
		byTeam[p.Team] = append(byTeam[p.Team], p.Rating)
	}
	require.Len(t, byTeam, 2)
	averages := make([]float64, 0, 2)
	for _, ratings := range byTeam {
		require.Len(t, ratings, 2)
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		averages = append(averages, float64(sum)/float64(len(ratings)))
	}
	spread := averages[0] - averages[1]
	if spread < 0 {
		spread = -spread
	}
	assert.Less(t, spread, 100.0)

	// 선발된 플레이어는 대기열에서 사라짐
	size, err := f.store.Size(ctx, models.ModeTeam2v2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	// 전원 알림
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4"}, f.notifier.players())
}

func TestWorker_RunTick_NotEnoughPlayers(t *testing.T) {
	f := setupWorker(t, Config{}, nil)
	ctx := context.Background()

	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{"p1": 1300, "p2": 1280})

	f.worker.RunTick()

	assert.Empty(t, f.sessions.created())
	assert.Empty(t, f.notifier.players())

	// 후보는 대기열에 그대로 남는다
	size, err := f.store.Size(ctx, models.ModeTeam2v2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

// interceptStore 특정 모드의 peek 직후 훅 실행 (커밋 경합 재현용)
type interceptStore struct {
	QueueStore
	peekMode  models.GameMode
	afterPeek func()
}

func (s *interceptStore) PeekRange(ctx context.Context, mode models.GameMode, start, count int) ([]models.QueueEntry, error) {
	entries, err := s.QueueStore.PeekRange(ctx, mode, start, count)
	if mode == s.peekMode && s.afterPeek != nil {
		hook := s.afterPeek
		s.afterPeek = nil
		hook()
	}
	return entries, err
}

// peek과 remove 사이의 취소: 매치를 버리고 나머지 티켓을 원래 순서로 되돌린다
func TestWorker_RunTick_CancelDuringCommit(t *testing.T) {
	var intercept *interceptStore
	f := setupWorker(t, Config{}, func(qs QueueStore) QueueStore {
		intercept = &interceptStore{QueueStore: qs}
		return intercept
	})
	ctx := context.Background()

	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{
		"p1": 1300, "p2": 1280, "p3": 1320, "p4": 1290,
	})
	intercept.peekMode = models.ModeTeam2v2
	intercept.afterPeek = func() {
		removed, err := f.store.Cancel(ctx, models.ModeTeam2v2, "p3")
		require.NoError(t, err)
		require.True(t, removed)
	}

	f.worker.RunTick()

	assert.Empty(t, f.sessions.created())
	assert.Empty(t, f.notifier.players())

	// 취소하지 않은 세 명은 원래 등록 시각 그대로 복원
	entries, err := f.store.PeekRange(ctx, models.ModeTeam2v2, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "p1", entries[0].PlayerID)
	assert.Equal(t, int64(1000), entries[0].EnqueuedAt)
	for _, e := range entries {
		assert.NotEqual(t, "p3", e.PlayerID)
	}
}

// 다른 인스턴스가 모드 락을 쥐고 있으면 이번 틱은 건너뛴다
func TestWorker_RunTick_SkipsLockedMode(t *testing.T) {
	f := setupWorker(t, Config{LockTTL: 10 * time.Second}, nil)
	ctx := context.Background()

	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{
		"p1": 1300, "p2": 1280, "p3": 1320, "p4": 1290,
	})

	lock, err := f.locks.Acquire(ctx, f.ns.LockKey(models.ModeTeam2v2), 10*time.Second)
	require.NoError(t, err)
	defer lock.Release(ctx)

	f.worker.RunTick()

	assert.Empty(t, f.sessions.created())

	size, err := f.store.Size(ctx, models.ModeTeam2v2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}

// 세션 영속화 실패 시 제거했던 티켓을 전부 되돌린다
func TestWorker_RunTick_RestoresOnPersistFailure(t *testing.T) {
	f := setupWorker(t, Config{}, nil)
	f.sessions.err = errors.New("db down")
	ctx := context.Background()

	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{
		"p1": 1300, "p2": 1280, "p3": 1320, "p4": 1290,
	})

	f.worker.RunTick()

	assert.Empty(t, f.notifier.players())

	size, err := f.store.Size(ctx, models.ModeTeam2v2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	entries, err := f.store.PeekRange(ctx, models.ModeTeam2v2, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "p1", entries[0].PlayerID)
	assert.Equal(t, int64(1000), entries[0].EnqueuedAt)
}

func TestWorker_RunTick_SweepsStaleTickets(t *testing.T) {
	f := setupWorker(t, Config{MaxWait: 10 * time.Minute}, nil)
	ctx := context.Background()

	// 1시간 전에 등록된 티켓과 방금 등록된 티켓
	require.NoError(t, f.store.Enqueue(ctx, models.QueueEntry{
		PlayerID:   "stale",
		GameMode:   models.ModeRanked1v1,
		Rating:     1200,
		EnqueuedAt: time.Now().Add(-time.Hour).UnixMilli(),
	}))
	require.NoError(t, f.store.Enqueue(ctx, models.QueueEntry{
		PlayerID:   "fresh",
		GameMode:   models.ModeRanked1v1,
		Rating:     1200,
		EnqueuedAt: time.Now().UnixMilli(),
	}))

	f.worker.RunTick()

	entries, err := f.store.PeekRange(ctx, models.ModeRanked1v1, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].PlayerID)
}

func TestWorker_StartStop(t *testing.T) {
	f := setupWorker(t, Config{Interval: 10 * time.Millisecond}, nil)
	ctx := context.Background()

	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{
		"p1": 1300, "p2": 1280, "p3": 1320, "p4": 1290,
	})

	f.worker.Start()
	f.worker.Start() // 중복 호출 무해

	assert.Eventually(t, func() bool {
		return len(f.sessions.created()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.worker.Stop()
	f.worker.Stop() // 중복 호출 무해

	// 중지 후에는 새 매치가 생기지 않는다
	enqueuePlayers(t, f.store, models.ModeTeam2v2, map[string]int{
		"q1": 1300, "q2": 1280, "q3": 1320, "q4": 1290,
	})
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.sessions.created(), 1)

	size, err := f.store.Size(ctx, models.ModeTeam2v2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}
