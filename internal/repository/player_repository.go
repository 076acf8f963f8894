package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kelseyabreu/biomasters-tcg-sub012/pkg/database"
)

// DefaultRating 레이팅 기록이 없는 신규 플레이어의 시작 레이팅
const DefaultRating = 1200

// PlayerRepository 플레이어 레이팅 조회 (매치메이킹 서비스의 RatingSource).
// 레이팅 갱신 공식은 게임 결과 처리 쪽 소관이라 여기서는 읽기만 한다.
type PlayerRepository struct {
	db *database.DB
}

func NewPlayerRepository(db *database.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Rating 플레이어 현재 레이팅. 기록이 없으면 DefaultRating.
func (r *PlayerRepository) Rating(ctx context.Context, playerID string) (int, error) {
	var rating int
	err := r.db.QueryRowContext(ctx, `
		SELECT rating FROM players WHERE id = $1
	`, playerID).Scan(&rating)

	if err == sql.ErrNoRows {
		return DefaultRating, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get rating: %w", err)
	}

	return rating, nil
}
