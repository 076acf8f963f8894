package models

import "time"

type SessionStatus string

const (
	SessionStatusWaiting   SessionStatus = "waiting"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// sessionStatusRank 상태 전이는 전진만 허용
var sessionStatusRank = map[SessionStatus]int{
	SessionStatusWaiting:   0,
	SessionStatusActive:    1,
	SessionStatusCompleted: 2,
	SessionStatusAbandoned: 2,
}

// CanTransition 상태 전이 허용 여부 (역행 불가)
func CanTransition(from, to SessionStatus) bool {
	fromRank, ok := sessionStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := sessionStatusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// SessionPlayer 세션 참가자
type SessionPlayer struct {
	PlayerID string `json:"playerId" db:"player_id"`
	Team     string `json:"team" db:"team"`
	Rating   int    `json:"rating" db:"rating"`
	Ready    bool   `json:"ready" db:"ready"`
}

// GameSession 성립된 매치의 영속 레코드
type GameSession struct {
	ID         string          `json:"id" db:"id"`
	GameMode   GameMode        `json:"gameMode" db:"game_mode"`
	Status     SessionStatus   `json:"status" db:"status"`
	MaxPlayers int             `json:"maxPlayers" db:"max_players"`
	Players    []SessionPlayer `json:"players"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
}

// AllReady 모든 참가자가 준비 완료인지 (active 전이 조건)
func (s *GameSession) AllReady() bool {
	if len(s.Players) == 0 {
		return false
	}
	for _, p := range s.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// MarkReady 참가자 ready 플래그 설정 (멱등), 참가자가 없으면 false
func (s *GameSession) MarkReady(playerID string) bool {
	for i := range s.Players {
		if s.Players[i].PlayerID == playerID {
			s.Players[i].Ready = true
			return true
		}
	}
	return false
}
