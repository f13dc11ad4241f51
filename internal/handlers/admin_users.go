package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storeadmin/api/internal/models"
	"storeadmin/api/internal/service"
)

func (h HandlerSet) ListUsers(c *gin.Context) {
	p := pagination(c)
	active, ok := queryBool(c, "isActive")
	if !ok {
		return
	}

	users, total, err := h.users.List(c.Request.Context(), models.UserFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Role:     models.UserRole(c.Query("role")),
		IsActive: active,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	listResponse(c, users, total, p)
}

func (h HandlerSet) UserStats(c *gin.Context) {
	stats, err := h.users.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h HandlerSet) GetUser(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	FirstName   string          `json:"firstName" binding:"required"`
	LastName    string          `json:"lastName" binding:"required"`
	Email       string          `json:"email" binding:"required,email"`
	Password    string          `json:"password" binding:"required"`
	Phone       string          `json:"phone"`
	Role        models.UserRole `json:"role"`
	IsActive    *bool           `json:"isActive"`
	Permissions []string        `json:"permissions" binding:"omitempty,dive,uuid"`
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), service.CreateUserInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Password:      req.Password,
		Phone:         req.Phone,
		Role:          req.Role,
		IsActive:      req.IsActive,
		PermissionIDs: req.Permissions,
	}, actor.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type updateUserRequest struct {
	FirstName   *string          `json:"firstName"`
	LastName    *string          `json:"lastName"`
	Email       *string          `json:"email" binding:"omitempty,email"`
	Phone       *string          `json:"phone"`
	IsActive    *bool            `json:"isActive"`
	Role        *models.UserRole `json:"role"`
	Password    *string          `json:"password"`
	Permissions *[]string        `json:"permissions"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.Update(c.Request.Context(), id, service.UpdateUserInput{
		Profile: models.UserProfileUpdate{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			IsActive:  req.IsActive,
		},
		Role:          req.Role,
		Password:      req.Password,
		PermissionIDs: req.Permissions,
	}, actor.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type userPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) UpdateUserPassword(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req userPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.users.UpdatePassword(c.Request.Context(), id, req.Password, actor.ID, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

type userRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

func (h HandlerSet) UpdateUserRole(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req userRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.users.UpdateRole(c.Request.Context(), id, req.Role, actor.ID, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	h.respondUser(c, id)
}

func (h HandlerSet) ToggleUserStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	user, err := h.users.ToggleStatus(c.Request.Context(), id, actor.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type userStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

func (h HandlerSet) SetUserStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.users.SetStatus(c.Request.Context(), id, *req.IsActive, actor.ID, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	h.respondUser(c, id)
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id, actor.ID, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkStatusRequest struct {
	IDs      []string `json:"ids" binding:"required,min=1,dive,uuid"`
	IsActive *bool    `json:"isActive" binding:"required"`
}

func (h HandlerSet) BulkUpdateStatus(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	n, err := h.users.BulkSetStatus(c.Request.Context(), req.IDs, *req.IsActive, actor.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,uuid"`
}

func (h HandlerSet) BulkDeleteUsers(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	n, err := h.users.BulkDelete(c.Request.Context(), req.IDs, actor.ID, clientContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h HandlerSet) respondUser(c *gin.Context, id string) {
	user, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
