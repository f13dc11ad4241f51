package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) ListPermissions(c *gin.Context) {
	perms, err := h.permissions.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

func (h HandlerSet) SeedPermissions(c *gin.Context) {
	added, err := h.permissions.Seed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h HandlerSet) UserPermissions(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	perms, err := h.permissions.UserPermissions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}

type replacePermissionsRequest struct {
	// An empty list revokes every grant; a missing field is rejected.
	Permissions []string `json:"permissions" binding:"required,dive,uuid"`
}

func (h HandlerSet) ReplaceUserPermissions(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req replacePermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.permissions.UpdatePermissions(ctx, id, req.Permissions, actor.ID, clientContext(c)); err != nil {
		respondError(c, err)
		return
	}
	perms, err := h.permissions.UserPermissions(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": perms})
}
