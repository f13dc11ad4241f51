package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storeadmin/api/internal/middleware"
	"storeadmin/api/internal/service"
)

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	Phone     string `json:"phone"`
}

func (h HandlerSet) SignUp(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
	}, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	MFACode  string `json:"mfaCode"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		MFACode:  req.MFACode,
	}, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if result.RequiresMFA {
		c.JSON(http.StatusOK, gin.H{"requiresMfa": true, "message": "MFA code required"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h HandlerSet) Logout(c *gin.Context) {
	err := h.auth.Logout(
		c.Request.Context(),
		middleware.AccessToken(c),
		c.GetHeader(middleware.SessionTokenHeader),
		clientContext(c),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h HandlerSet) Validate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": user.Public()})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	public, err := h.auth.Me(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": public})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. All sessions have been closed."})
}

type expiredPasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ChangeExpiredPassword(c *gin.Context) {
	var req expiredPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	err := h.auth.ChangeExpiredPassword(c.Request.Context(), req.Email, req.CurrentPassword, req.NewPassword, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed. You can now log in."})
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	msg, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.NewPassword, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

type sessionResponse struct {
	ID             string    `json:"id"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	Device         string    `json:"device,omitempty"`
	Location       string    `json:"location,omitempty"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
	Current        bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.security.ActiveSessions(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	currentID := ""
	if current, ok := middleware.CurrentSession(c); ok {
		currentID = current.ID
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
			Current:        s.ID == currentID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	sessionID, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := h.security.RevokeUserSession(c.Request.Context(), user.ID, sessionID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
