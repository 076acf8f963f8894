package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/service"
)

// MatchmakingHandler 매치메이킹 API 핸들러
type MatchmakingHandler struct {
	matchmaking *service.MatchmakingService
}

// NewMatchmakingHandler MatchmakingHandler 생성
func NewMatchmakingHandler(matchmaking *service.MatchmakingService) *MatchmakingHandler {
	return &MatchmakingHandler{matchmaking: matchmaking}
}

type findMatchRequest struct {
	Mode        string            `json:"mode" binding:"required"`
	Preferences map[string]string `json:"preferences"`
}

// FindMatch 대기열 등록
// POST /api/matchmaking/queue
func (h *MatchmakingHandler) FindMatch(c *gin.Context) {
	playerID := c.GetString("playerID")

	var req findMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}

	ticket, err := h.matchmaking.FindMatch(c.Request.Context(), playerID, req.Mode, req.Preferences)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// CancelMatch 대기열에서 이탈
// DELETE /api/matchmaking/queue/:mode
func (h *MatchmakingHandler) CancelMatch(c *gin.Context) {
	playerID := c.GetString("playerID")
	mode := c.Param("mode")

	removed, err := h.matchmaking.CancelMatch(c.Request.Context(), playerID, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// QueueStatus 대기 상태 조회
// GET /api/matchmaking/queue/:mode
func (h *MatchmakingHandler) QueueStatus(c *gin.Context) {
	playerID := c.GetString("playerID")
	mode := c.Param("mode")

	state, err := h.matchmaking.QueueStatus(c.Request.Context(), playerID, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// writeError 서비스 에러 분류를 HTTP 상태로 변환
func (h *MatchmakingHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown game mode"})
	case errors.Is(err, service.ErrAlreadyInQueue):
		c.JSON(http.StatusConflict, gin.H{"error": "already in queue"})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matchmaking temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
