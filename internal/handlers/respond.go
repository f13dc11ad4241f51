package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storeadmin/api/internal/middleware"
	"storeadmin/api/internal/models"
	"storeadmin/api/internal/service"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the client-safe message of a service error. Anything
// else becomes an opaque 500 and the cause goes to the access log.
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	status := statusOf(err)
	if status == http.StatusInternalServerError || !errors.As(err, &svcErr) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	body := gin.H{"error": svcErr.Message}
	if svcErr.Code != "" {
		body["code"] = svcErr.Code
	}
	c.AbortWithStatusJSON(status, body)
}

func bindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func clientContext(c *gin.Context) models.ClientContext {
	return models.ClientContext{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// idParam reads a uuid path parameter. Malformed ids are answered with 400 here.
func idParam(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return "", false
	}
	return id.String(), true
}

func currentUser(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return user, ok
}

type page struct {
	Page   int
	Limit  int
	Offset int
}

func pagination(c *gin.Context) page {
	p := page{Page: 1, Limit: defaultLimit}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxLimit)
	}
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 1 {
		p.Page = v
	}
	p.Offset = (p.Page - 1) * p.Limit
	return p
}

func queryBool(c *gin.Context, key string) (*bool, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &v, true
}

func listResponse[T any](c *gin.Context, items []T, total int, p page) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"page":  p.Page,
		"limit": p.Limit,
	})
}
