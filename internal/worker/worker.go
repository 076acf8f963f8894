package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/balancer"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/namespace"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/distributed"
)

// QueueStore 워커가 사용하는 대기열 연산
type QueueStore interface {
	PeekRange(ctx context.Context, mode models.GameMode, start, count int) ([]models.QueueEntry, error)
	RemoveMany(ctx context.Context, mode models.GameMode, playerIDs []string) ([]models.QueueEntry, error)
	Restore(ctx context.Context, mode models.GameMode, entries []models.QueueEntry) error
	SweepStale(ctx context.Context, mode models.GameMode, cutoff int64) ([]string, error)
}

// SessionStore 성립된 세션을 영속화하는 외부 저장소 (INSERT만 수행)
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.GameSession) error
}

// Notifier 매치 성립을 플레이어에게 알리는 통로 (best-effort)
type Notifier interface {
	Notify(ctx context.Context, playerID, sessionID string, payload interface{}) error
}

// Config 워커 동작 설정
type Config struct {
	Interval    time.Duration // 매칭 시도 주기
	LockTTL     time.Duration // 모드별 분산 락 TTL
	MaxWait     time.Duration // 티켓 최대 대기 시간 (0 = 스테일 정리 안 함)
	PoolLimit   int           // 틱당 평가할 최대 후보 수
	TickTimeout time.Duration // 틱 하나의 원격 호출 시간 상한
}

// Worker 주기적으로 모드별 대기열에서 매치를 구성하는 백그라운드 워커.
// 여러 프로세스가 동시에 떠 있어도 모드별 분산 락이 풀 소비를 직렬화한다.
type Worker struct {
	queue    QueueStore
	sessions SessionStore
	notifier Notifier
	locks    *distributed.RedisLockManager
	ns       *namespace.Resolver
	modes    map[models.GameMode]models.GameModeConfig
	cfg      Config
	logger   *zap.Logger

	instanceID string
	stopChan   chan struct{}
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// New 워커 생성. 의존성은 전부 주입받는다 (네임스페이스별 독립 인스턴스 테스트 가능).
func New(
	queueStore QueueStore,
	sessions SessionStore,
	notifier Notifier,
	locks *distributed.RedisLockManager,
	ns *namespace.Resolver,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Second
	}
	if cfg.PoolLimit <= 0 {
		cfg.PoolLimit = 32
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = cfg.LockTTL
	}

	return &Worker{
		queue:      queueStore,
		sessions:   sessions,
		notifier:   notifier,
		locks:      locks,
		ns:         ns,
		modes:      models.GameModes(),
		cfg:        cfg,
		logger:     logger,
		instanceID: uuid.New().String(),
		stopChan:   make(chan struct{}),
	}
}

// Start 매칭 루프 시작
func (w *Worker) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("Starting matchmaking worker",
		zap.String("instance_id", w.instanceID),
		zap.Duration("interval", w.cfg.Interval))

	w.wg.Add(1)
	go w.loop()
}

// Stop 매칭 루프 중지. 진행 중인 틱이 끝날 때까지 기다린다.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.logger.Info("Stopping matchmaking worker")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Matchmaking worker stopped")
}

// loop 주기적 매칭 실행
func (w *Worker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	// 시작 시 한번 실행
	w.RunTick()

	for {
		select {
		case <-ticker.C:
			w.RunTick()
		case <-w.stopChan:
			return
		}
	}
}

// RunTick 모든 모드에 대해 매칭 1회 시도. 어떤 틱의 실패도 루프를 죽이지 않는다.
func (w *Worker) RunTick() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Matchmaking tick panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.TickTimeout)
	defer cancel()

	// 모드 순서 고정 (로그/테스트 재현성)
	modes := make([]models.GameMode, 0, len(w.modes))
	for mode := range w.modes {
		modes = append(modes, mode)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })

	for _, mode := range modes {
		w.processMode(ctx, w.modes[mode])
	}
}

// processMode 한 모드의 풀에서 매치 구성 시도.
// 락 획득 → 스테일 정리 → 풀 평가 → 밸런싱 → 원자적 제거 → 세션 영속화 → 알림.
func (w *Worker) processMode(ctx context.Context, cfg models.GameModeConfig) {
	lock, err := w.locks.Acquire(ctx, w.ns.LockKey(cfg.Mode), w.cfg.LockTTL)
	if errors.Is(err, distributed.ErrLockNotAcquired) {
		// 다른 인스턴스가 이 모드를 처리 중이면 이번 틱은 건너뜀
		w.logger.Debug("Mode locked by another instance", zap.String("mode", string(cfg.Mode)))
		return
	}
	if err != nil {
		w.logger.Error("Failed to acquire mode lock",
			zap.String("mode", string(cfg.Mode)),
			zap.Error(err))
		return
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, distributed.ErrLockNotHeld) {
			w.logger.Error("Failed to release mode lock", zap.Error(err))
		}
	}()

	w.sweepStale(ctx, cfg.Mode)

	needed := cfg.RequiredPlayers()
	pool, err := w.queue.PeekRange(ctx, cfg.Mode, 0, w.cfg.PoolLimit)
	if err != nil {
		w.logger.Error("Failed to peek queue",
			zap.String("mode", string(cfg.Mode)),
			zap.Error(err))
		return
	}

	if len(pool) < needed {
		if len(pool) > 0 {
			w.logger.Debug("Not enough players for match",
				zap.String("mode", string(cfg.Mode)),
				zap.Int("waiting", len(pool)),
				zap.Int("needed", needed))
		}
		return
	}

	assignment := balancer.Build(pool, cfg)
	if assignment == nil {
		// 현재 풀에 밸런스 조건을 맞출 부분집합이 없음, 다음 틱에 재시도
		w.logger.Debug("No balanced match possible this tick",
			zap.String("mode", string(cfg.Mode)),
			zap.Int("waiting", len(pool)))
		return
	}

	playerIDs := assignment.PlayerIDs()
	removed, err := w.queue.RemoveMany(ctx, cfg.Mode, playerIDs)
	if err != nil {
		w.logger.Error("Failed to remove matched players",
			zap.String("mode", string(cfg.Mode)),
			zap.Error(err))
		return
	}

	// peek과 remove 사이에 누군가 취소했으면 매치를 버리고 나머지를 되돌린다.
	if len(removed) != len(playerIDs) {
		w.logger.Info("Match aborted, player cancelled during commit",
			zap.String("mode", string(cfg.Mode)),
			zap.Int("requested", len(playerIDs)),
			zap.Int("removed", len(removed)))
		w.restore(cfg.Mode, removed)
		return
	}

	session := w.buildSession(assignment, cfg)
	if err := w.sessions.CreateSession(ctx, session); err != nil {
		w.logger.Error("Failed to persist session, restoring queue",
			zap.String("mode", string(cfg.Mode)),
			zap.Error(err))
		w.restore(cfg.Mode, removed)
		return
	}

	w.notifyPlayers(ctx, session)

	w.logger.Info("Match created",
		zap.String("sessionId", session.ID),
		zap.String("mode", string(cfg.Mode)),
		zap.Int("players", len(session.Players)))
}

// sweepStale 최대 대기 시간을 넘긴 티켓 정리 (로그만 남김)
func (w *Worker) sweepStale(ctx context.Context, mode models.GameMode) {
	if w.cfg.MaxWait <= 0 {
		return
	}

	cutoff := time.Now().Add(-w.cfg.MaxWait).UnixMilli()
	swept, err := w.queue.SweepStale(ctx, mode, cutoff)
	if err != nil {
		w.logger.Error("Failed to sweep stale tickets",
			zap.String("mode", string(mode)),
			zap.Error(err))
		return
	}
	if len(swept) > 0 {
		w.logger.Info("Swept stale tickets",
			zap.String("mode", string(mode)),
			zap.Strings("players", swept))
	}
}

// restore 제거했던 티켓을 원래 enqueuedAt 그대로 복원
func (w *Worker) restore(mode models.GameMode, entries []models.QueueEntry) {
	if len(entries) == 0 {
		return
	}
	// 틱 컨텍스트가 이미 만료됐을 수 있으므로 복원은 새 컨텍스트로
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := w.queue.Restore(ctx, mode, entries); err != nil {
		w.logger.Error("Failed to restore queue entries",
			zap.String("mode", string(mode)),
			zap.Error(err))
	}
}

// buildSession 팀 배정 결과로 waiting 상태의 세션 레코드 구성
func (w *Worker) buildSession(assignment *models.TeamAssignment, cfg models.GameModeConfig) *models.GameSession {
	session := &models.GameSession{
		ID:         uuid.New().String(),
		GameMode:   cfg.Mode,
		Status:     models.SessionStatusWaiting,
		MaxPlayers: cfg.RequiredPlayers(),
		CreatedAt:  time.Now().UTC(),
	}

	for _, team := range assignment.Teams {
		for _, p := range team.Players {
			session.Players = append(session.Players, models.SessionPlayer{
				PlayerID: p.PlayerID,
				Team:     team.Label,
				Rating:   p.Rating,
				Ready:    false,
			})
		}
	}

	return session
}

// notifyPlayers 선발된 플레이어 전원에게 매치 성립 알림.
// 세션은 이미 영속화되어 있으므로 개별 실패는 치명적이지 않다 (로그만).
func (w *Worker) notifyPlayers(ctx context.Context, session *models.GameSession) {
	for _, p := range session.Players {
		payload := map[string]interface{}{
			"sessionId": session.ID,
			"gameMode":  session.GameMode,
			"team":      p.Team,
		}
		if err := w.notifier.Notify(ctx, p.PlayerID, session.ID, payload); err != nil {
			w.logger.Warn("Failed to notify player",
				zap.String("playerId", p.PlayerID),
				zap.String("sessionId", session.ID),
				zap.Error(err))
		}
	}
}
