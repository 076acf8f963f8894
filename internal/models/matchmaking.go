package models

import "encoding/json"

// GameMode 매치메이킹 모드
type GameMode string

const (
	ModeRanked1v1 GameMode = "ranked_1v1"
	ModeTeam2v2   GameMode = "team_2v2"
	ModeFFA4P     GameMode = "ffa_4p"
)

// GameModeConfig 모드별 파티 구성 및 밸런스 규칙
type GameModeConfig struct {
	Mode            GameMode `json:"mode"`
	TeamCount       int      `json:"teamCount"` // 팀 없는 모드는 1
	PlayersPerTeam  int      `json:"playersPerTeam"`
	MaxImbalance    int      `json:"maxImbalance"`    // 팀 평균 레이팅 차이 상한 (팀 모드)
	MaxRatingSpread int      `json:"maxRatingSpread"` // 선발 집합 내 레이팅 폭 상한 (0 = 제한 없음)
}

// RequiredPlayers 매치 성립에 필요한 총 인원
func (c GameModeConfig) RequiredPlayers() int {
	return c.TeamCount * c.PlayersPerTeam
}

// IsTeamMode 팀 분할이 필요한 모드인지
func (c GameModeConfig) IsTeamMode() bool {
	return c.TeamCount > 1
}

// GameModes 지원 모드 테이블 (모드별 분기 대신 설정으로 통일)
func GameModes() map[GameMode]GameModeConfig {
	return map[GameMode]GameModeConfig{
		ModeRanked1v1: {Mode: ModeRanked1v1, TeamCount: 1, PlayersPerTeam: 2, MaxRatingSpread: 300},
		ModeTeam2v2:   {Mode: ModeTeam2v2, TeamCount: 2, PlayersPerTeam: 2, MaxImbalance: 100},
		ModeFFA4P:     {Mode: ModeFFA4P, TeamCount: 1, PlayersPerTeam: 4, MaxRatingSpread: 400},
	}
}

// QueueEntry 매치메이킹 티켓 (플레이어/모드당 최대 1개)
type QueueEntry struct {
	PlayerID    string            `json:"playerId"`
	GameMode    GameMode          `json:"gameMode"`
	Rating      int               `json:"rating"`
	Preferences map[string]string `json:"preferences,omitempty"`
	EnqueuedAt  int64             `json:"enqueuedAt"` // Unix 밀리초, 큐 정렬 키
}

// MarshalBinary Redis 저장용 직렬화
func (e QueueEntry) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// TeamPlayer 팀에 배정된 플레이어
type TeamPlayer struct {
	PlayerID string `json:"playerId"`
	Rating   int    `json:"rating"`
}

// Team 밸런서가 구성한 팀
type Team struct {
	Label   string       `json:"label"`
	Players []TeamPlayer `json:"players"`
}

// AverageRating 팀 평균 레이팅
func (t Team) AverageRating() float64 {
	if len(t.Players) == 0 {
		return 0
	}
	sum := 0
	for _, p := range t.Players {
		sum += p.Rating
	}
	return float64(sum) / float64(len(t.Players))
}

// TeamAssignment 밸런서 출력: 소비할 플레이어 전체의 팀 분할
type TeamAssignment struct {
	Mode  GameMode `json:"mode"`
	Teams []Team   `json:"teams"`
}

// PlayerIDs 배정된 전체 플레이어 ID (큐에서 제거할 대상)
func (a TeamAssignment) PlayerIDs() []string {
	var ids []string
	for _, t := range a.Teams {
		for _, p := range t.Players {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}

// Spread 팀 평균 레이팅의 최대 차이
func (a TeamAssignment) Spread() float64 {
	if len(a.Teams) == 0 {
		return 0
	}
	min, max := a.Teams[0].AverageRating(), a.Teams[0].AverageRating()
	for _, t := range a.Teams[1:] {
		avg := t.AverageRating()
		if avg < min {
			min = avg
		}
		if avg > max {
			max = avg
		}
	}
	return max - min
}
