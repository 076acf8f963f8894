package balancer

import (
	"fmt"
	"sort"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/models"
)

// windowAttempts 첫 윈도우가 밸런스 조건을 못 맞출 때 한 칸씩 밀어 재시도할 횟수
const windowAttempts = 3

// Build 후보 풀에서 모드 구성에 맞는 팀 분할을 계산한다. 순수 함수.
// 조건을 만족하는 부분집합이 없으면 nil을 반환한다 (에러 아님, 다음 틱에 재시도).
func Build(pool []models.QueueEntry, cfg models.GameModeConfig) *models.TeamAssignment {
	needed := cfg.RequiredPlayers()
	if needed <= 0 || len(pool) < needed {
		return nil
	}

	if cfg.IsTeamMode() {
		return buildTeams(pool, cfg)
	}
	return buildRoster(pool, cfg)
}

// buildTeams 레이팅 내림차순 정렬 후 스네이크 드래프트로 팀 평균을 근사 균등화.
// 첫 윈도우가 불균형 상한을 넘으면 정렬 목록 위에서 윈도우를 밀어가며 재시도.
func buildTeams(pool []models.QueueEntry, cfg models.GameModeConfig) *models.TeamAssignment {
	needed := cfg.RequiredPlayers()

	sorted := make([]models.QueueEntry, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rating != sorted[j].Rating {
			return sorted[i].Rating > sorted[j].Rating
		}
		return sorted[i].EnqueuedAt < sorted[j].EnqueuedAt
	})

	maxStart := len(sorted) - needed
	if maxStart > windowAttempts {
		maxStart = windowAttempts
	}

	for start := 0; start <= maxStart; start++ {
		assignment := snakeDraft(sorted[start:start+needed], cfg)
		if float64(cfg.MaxImbalance) >= assignment.Spread() {
			return assignment
		}
	}

	return nil
}

// buildRoster 팀 없는 모드: 등록 순서(FIFO)로 오래 기다린 순서대로 선발.
// MaxRatingSpread가 설정된 모드는 선발 집합의 레이팅 폭을 검사하고,
// 실패 시 등록 순서 위에서 윈도우를 밀어가며 재시도.
func buildRoster(pool []models.QueueEntry, cfg models.GameModeConfig) *models.TeamAssignment {
	needed := cfg.RequiredPlayers()

	fifo := make([]models.QueueEntry, len(pool))
	copy(fifo, pool)
	sort.SliceStable(fifo, func(i, j int) bool {
		return fifo[i].EnqueuedAt < fifo[j].EnqueuedAt
	})

	maxStart := len(fifo) - needed
	if maxStart > windowAttempts {
		maxStart = windowAttempts
	}

	for start := 0; start <= maxStart; start++ {
		window := fifo[start : start+needed]
		if cfg.MaxRatingSpread > 0 && ratingSpread(window) > cfg.MaxRatingSpread {
			continue
		}

		players := make([]models.TeamPlayer, len(window))
		for i, entry := range window {
			players[i] = models.TeamPlayer{PlayerID: entry.PlayerID, Rating: entry.Rating}
		}
		return &models.TeamAssignment{
			Mode:  cfg.Mode,
			Teams: []models.Team{{Label: "players", Players: players}},
		}
	}

	return nil
}

// snakeDraft 레이팅 내림차순 윈도우를 팀 수만큼 왕복 배정 (1,2,2,1,...)
func snakeDraft(window []models.QueueEntry, cfg models.GameModeConfig) *models.TeamAssignment {
	teams := make([]models.Team, cfg.TeamCount)
	for i := range teams {
		teams[i] = models.Team{
			Label:   fmt.Sprintf("team_%d", i+1),
			Players: make([]models.TeamPlayer, 0, cfg.PlayersPerTeam),
		}
	}

	for i, entry := range window {
		round := i / cfg.TeamCount
		pos := i % cfg.TeamCount
		team := pos
		if round%2 == 1 {
			team = cfg.TeamCount - 1 - pos
		}
		teams[team].Players = append(teams[team].Players, models.TeamPlayer{
			PlayerID: entry.PlayerID,
			Rating:   entry.Rating,
		})
	}

	return &models.TeamAssignment{Mode: cfg.Mode, Teams: teams}
}

func ratingSpread(entries []models.QueueEntry) int {
	min, max := entries[0].Rating, entries[0].Rating
	for _, e := range entries[1:] {
		if e.Rating < min {
			min = e.Rating
		}
		if e.Rating > max {
			max = e.Rating
		}
	}
	return max - min
}
