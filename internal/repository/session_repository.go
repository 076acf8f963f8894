package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/database"
)

// SessionRepository 성립된 게임 세션의 영속 저장소.
// 워커는 세션을 한 번만 INSERT하고 이후 상태 전이는 준비 확인 경로가 담당한다.
type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession 세션과 참가자를 한 트랜잭션으로 저장
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.GameSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO game_sessions (id, game_mode, status, max_players, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.GameMode, session.Status, session.MaxPlayers, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for _, p := range session.Players {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_players (session_id, player_id, team, rating, ready)
			VALUES ($1, $2, $3, $4, $5)
		`, session.ID, p.PlayerID, p.Team, p.Rating, p.Ready)
		if err != nil {
			return fmt.Errorf("failed to insert session player: %w", err)
		}
	}

	return tx.Commit()
}

// GetSession 세션 조회 (참가자 포함), 없으면 (nil, nil)
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*models.GameSession, error) {
	session := &models.GameSession{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, game_mode, status, max_players, created_at
		FROM game_sessions
		WHERE id = $1
	`, id).Scan(&session.ID, &session.GameMode, &session.Status, &session.MaxPlayers, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT player_id, team, rating, ready
		FROM session_players
		WHERE session_id = $1
		ORDER BY team, player_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.SessionPlayer
		if err := rows.Scan(&p.PlayerID, &p.Team, &p.Rating, &p.Ready); err != nil {
			return nil, fmt.Errorf("failed to scan session player: %w", err)
		}
		session.Players = append(session.Players, p)
	}

	return session, rows.Err()
}

// MarkPlayerReady 참가자의 ready 플래그 설정 (멱등).
// 마지막 참가자의 확인이 들어오는 순간에만 세션이 waiting -> active로 전이한다.
// 확인 순서는 무관하다.
func (r *SessionRepository) MarkPlayerReady(ctx context.Context, sessionID, playerID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	// 세션 행을 먼저 잠가 같은 세션의 확인들을 직렬화한다.
	// 잠그지 않으면 마지막 두 확인이 서로의 미커밋 ready를 못 보고
	// 둘 다 전이를 건너뛸 수 있다.
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM game_sessions WHERE id = $1 FOR UPDATE
	`, sessionID).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock session: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE session_players
		SET ready = TRUE
		WHERE session_id = $1 AND player_id = $2
	`, sessionID, playerID)
	if err != nil {
		return false, fmt.Errorf("failed to mark ready: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	// 전원 ready일 때만 전이, 상태 역행 없음
	_, err = tx.ExecContext(ctx, `
		UPDATE game_sessions
		SET status = 'active'
		WHERE id = $1
		  AND status = 'waiting'
		  AND NOT EXISTS (
		    SELECT 1 FROM session_players
		    WHERE session_id = $1 AND ready = FALSE
		  )
	`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to activate session: %w", err)
	}

	return true, tx.Commit()
}

// UpdateStatus 전진 전이만 허용하는 상태 갱신. 전이가 일어났는지 반환.
func (r *SessionRepository) UpdateStatus(ctx context.Context, sessionID string, from, to models.SessionStatus) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("invalid status transition: %s -> %s", from, to)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET status = $1
		WHERE id = $2 AND status = $3
	`, to, sessionID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
