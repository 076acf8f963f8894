package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newWaitingSession() *GameSession {
	return &GameSession{
		ID:         "s1",
		GameMode:   ModeTeam2v2,
		Status:     SessionStatusWaiting,
		MaxPlayers: 4,
		Players: []SessionPlayer{
			{PlayerID: "p1", Team: "team_1", Rating: 1300},
			{PlayerID: "p2", Team: "team_1", Rating: 1290},
			{PlayerID: "p3", Team: "team_2", Rating: 1310},
			{PlayerID: "p4", Team: "team_2", Rating: 1280},
		},
	}
}

// 준비 확인 순서와 무관하게 전원 ready일 때만 AllReady
func TestGameSession_AllReady_OrderIndependent(t *testing.T) {
	orders := [][]string{
		{"p1", "p2", "p3", "p4"},
		{"p4", "p3", "p2", "p1"},
		{"p2", "p4", "p1", "p3"},
	}

	for _, order := range orders {
		session := newWaitingSession()
		for i, playerID := range order {
			assert.True(t, session.MarkReady(playerID))
			if i < len(order)-1 {
				assert.False(t, session.AllReady(), "ready after %d acks", i+1)
			}
		}
		assert.True(t, session.AllReady())
	}
}

func TestGameSession_MarkReady_Idempotent(t *testing.T) {
	session := newWaitingSession()

	assert.True(t, session.MarkReady("p1"))
	assert.True(t, session.MarkReady("p1"))
	assert.False(t, session.AllReady())

	// 참가자가 아닌 플레이어
	assert.False(t, session.MarkReady("stranger"))
}

func TestGameSession_AllReady_EmptyPlayers(t *testing.T) {
	session := &GameSession{Status: SessionStatusWaiting}
	assert.False(t, session.AllReady())
}

// 상태 전이는 전진만 허용
func TestCanTransition_ForwardOnly(t *testing.T) {
	assert.True(t, CanTransition(SessionStatusWaiting, SessionStatusActive))
	assert.True(t, CanTransition(SessionStatusWaiting, SessionStatusAbandoned))
	assert.True(t, CanTransition(SessionStatusActive, SessionStatusCompleted))
	assert.True(t, CanTransition(SessionStatusActive, SessionStatusAbandoned))

	assert.False(t, CanTransition(SessionStatusActive, SessionStatusWaiting))
	assert.False(t, CanTransition(SessionStatusCompleted, SessionStatusActive))
	assert.False(t, CanTransition(SessionStatusCompleted, SessionStatusWaiting))
	assert.False(t, CanTransition(SessionStatusWaiting, SessionStatusWaiting))
	assert.False(t, CanTransition("bogus", SessionStatusActive))
}

func TestGameModeConfig_RequiredPlayers(t *testing.T) {
	modes := GameModes()

	assert.Equal(t, 2, modes[ModeRanked1v1].RequiredPlayers())
	assert.Equal(t, 4, modes[ModeTeam2v2].RequiredPlayers())
	assert.Equal(t, 4, modes[ModeFFA4P].RequiredPlayers())

	assert.False(t, modes[ModeRanked1v1].IsTeamMode())
	assert.True(t, modes[ModeTeam2v2].IsTeamMode())
	assert.False(t, modes[ModeFFA4P].IsTeamMode())
}
