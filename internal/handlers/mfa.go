package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) SetupMFA(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	setup, err := h.mfa.Setup(c.Request.Context(), user.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setup)
}

type mfaCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h HandlerSet) EnableMFA(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req mfaCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.mfa.Enable(c.Request.Context(), user.ID, req.Code, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "MFA enabled"})
}

type mfaDisableRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) DisableMFA(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req mfaDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.mfa.Disable(c.Request.Context(), user.ID, req.Password, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "MFA disabled"})
}
