package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kelseyabreu/biomasters-tcg-sub012/internal/service"
)

// SessionHandler 게임 세션 조회/준비 확인 핸들러
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler SessionHandler 생성
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GetSession 세션 조회 (알림을 놓친 클라이언트의 폴링 경로)
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Ready 참가자 준비 확인 (멱등)
// POST /api/sessions/:id/ready
func (h *SessionHandler) Ready(c *gin.Context) {
	playerID := c.GetString("playerID")

	session, err := h.sessions.MarkReady(c.Request.Context(), c.Param("id"), playerID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrNotInSession):
		c.JSON(http.StatusForbidden, gin.H{"error": "player not in session"})
	case errors.Is(err, service.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
