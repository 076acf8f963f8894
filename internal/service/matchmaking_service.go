package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/config"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/queue"
)

// RatingSource 플레이어 현재 레이팅 조회 (레이팅 갱신 공식은 외부 소관)
type RatingSource interface {
	Rating(ctx context.Context, playerID string) (int, error)
}

// QueueTicket findMatch 결과
type QueueTicket struct {
	InQueue    bool            `json:"inQueue"`
	Mode       models.GameMode `json:"mode"`
	EnqueuedAt int64           `json:"enqueuedAt"`
}

// QueueState 대기열 조회 결과
type QueueState struct {
	Queued   bool            `json:"queued"`
	Mode     models.GameMode `json:"mode"`
	Position int64           `json:"position"` // 0부터, 미대기 시 -1
	Size     int64           `json:"size"`
}

// MatchmakingService 동기 매치메이킹 API.
// 상태는 전부 Queue Store에 있으므로 여러 요청 고루틴에서 동시 호출해도 안전하다.
type MatchmakingService struct {
	queue   *queue.Store
	ratings RatingSource
	modes   map[models.GameMode]models.GameModeConfig
	policy  config.RequeuePolicy
	timeout time.Duration
	logger  *zap.Logger
}

// NewMatchmakingService 매치메이킹 서비스 생성
func NewMatchmakingService(
	queueStore *queue.Store,
	ratings RatingSource,
	policy config.RequeuePolicy,
	logger *zap.Logger,
) *MatchmakingService {
	return &MatchmakingService{
		queue:   queueStore,
		ratings: ratings,
		modes:   models.GameModes(),
		policy:  policy,
		timeout: 3 * time.Second,
		logger:  logger,
	}
}

// FindMatch 플레이어를 모드 대기열에 등록.
// 이미 대기 중이면 정책에 따라 티켓을 갱신(replace)하거나 거부(reject)한다.
// replace는 멱등: 티켓이 두 개가 되거나 사라지는 순간이 없다.
func (s *MatchmakingService) FindMatch(ctx context.Context, playerID, mode string, preferences map[string]string) (*QueueTicket, error) {
	cfg, ok := s.modes[models.GameMode(mode)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rating, err := s.ratings.Rating(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: rating lookup failed: %v", ErrUnavailable, err)
	}

	if s.policy == config.RequeueReject {
		queued, err := s.queue.Contains(ctx, cfg.Mode, playerID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if queued {
			return nil, fmt.Errorf("%w: player %s in mode %s", ErrAlreadyInQueue, playerID, mode)
		}
	}

	entry := models.QueueEntry{
		PlayerID:    playerID,
		GameMode:    cfg.Mode,
		Rating:      rating,
		Preferences: preferences,
		EnqueuedAt:  time.Now().UnixMilli(),
	}

	if err := s.queue.Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.logger.Debug("Player enqueued",
		zap.String("playerId", playerID),
		zap.String("mode", mode),
		zap.Int("rating", rating))

	return &QueueTicket{InQueue: true, Mode: cfg.Mode, EnqueuedAt: entry.EnqueuedAt}, nil
}

// CancelMatch 대기열에서 티켓 제거. 티켓이 없었으면 removed=false (에러 아님).
func (s *MatchmakingService) CancelMatch(ctx context.Context, playerID, mode string) (bool, error) {
	cfg, ok := s.modes[models.GameMode(mode)]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.queue.Cancel(ctx, cfg.Mode, playerID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if removed {
		s.logger.Debug("Player dequeued",
			zap.String("playerId", playerID),
			zap.String("mode", mode))
	}

	return removed, nil
}

// QueueStatus 플레이어의 대기 상태와 대기열 크기 조회
func (s *MatchmakingService) QueueStatus(ctx context.Context, playerID, mode string) (*QueueState, error) {
	cfg, ok := s.modes[models.GameMode(mode)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	position, err := s.queue.Position(ctx, cfg.Mode, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	size, err := s.queue.Size(ctx, cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &QueueState{
		Queued:   position >= 0,
		Mode:     cfg.Mode,
		Position: position,
		Size:     size,
	}, nil
}
