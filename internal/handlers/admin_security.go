package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storeadmin/api/internal/models"
)

func (h HandlerSet) ListSecurityLogs(c *gin.Context) {
	p := pagination(c)
	resolved, ok := queryBool(c, "resolved")
	if !ok {
		return
	}
	userID := c.Query("userId")
	if userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
	}

	logs, total, err := h.security.ListLogs(c.Request.Context(), models.SecurityLogFilter{
		UserID:    userID,
		EventType: models.SecurityEventType(c.Query("eventType")),
		RiskLevel: models.RiskLevel(c.Query("riskLevel")),
		Resolved:  resolved,
		Limit:     p.Limit,
		Offset:    p.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, logs, total, p)
}

type resolveLogRequest struct {
	Notes string `json:"notes"`
}

func (h HandlerSet) ResolveSecurityLog(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req resolveLogRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	if err := h.security.ResolveLog(c.Request.Context(), c.Param("id"), actor.ID, req.Notes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Security log resolved"})
}

func (h HandlerSet) SecurityStats(c *gin.Context) {
	stats, err := h.security.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h HandlerSet) UserSessions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sessions, err := h.security.ActiveSessions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse{
			ID:             s.ID,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			Device:         s.Device,
			Location:       s.Location,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
			CreatedAt:      s.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h HandlerSet) RevokeUserSessions(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.security.RevokeAllSessions(c.Request.Context(), id, actor.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

func (h HandlerSet) UnlockUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.security.UnlockAccount(c.Request.Context(), id, actor.ID, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account unlocked"})
}
