package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/repository"
)

// SessionService 세션 조회와 준비 확인 경로.
// 세션 생성은 워커 소관, 게임 종료 처리는 게임 서버 소관이다.
type SessionService struct {
	sessions *repository.SessionRepository
	logger   *zap.Logger
}

func NewSessionService(sessions *repository.SessionRepository, logger *zap.Logger) *SessionService {
	return &SessionService{sessions: sessions, logger: logger}
}

// GetSession 세션 조회 (매치 알림을 못 받은 클라이언트의 폴링 경로)
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.GameSession, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// MarkReady 참가자 준비 확인 (멱등, 순서 무관).
// 마지막 확인이 세션을 active로 전이시킨다.
func (s *SessionService) MarkReady(ctx context.Context, sessionID, playerID string) (*models.GameSession, error) {
	ok, err := s.sessions.MarkPlayerReady(ctx, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		// 세션이 없는 건지 참가자가 아닌 건지 구분
		session, err := s.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return nil, ErrNotInSession
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.Status == models.SessionStatusActive {
		s.logger.Info("Session activated, all players ready",
			zap.String("sessionId", sessionID))
	}

	return session, nil
}
