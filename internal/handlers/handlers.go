package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"storeadmin/api/internal/middleware"
	"storeadmin/api/internal/models"
	"storeadmin/api/internal/service"
)

// HealthCheck reports whether one backing service answers.
type HealthCheck func(ctx context.Context) error

type HandlerSet struct {
	log         zerolog.Logger
	environment string

	auth        *service.AuthService
	mfa         *service.MFAService
	security    *service.SecurityService
	users       *service.UserService
	permissions *service.PermissionService

	authenticate gin.HandlerFunc
	// logout must still work with a dead session token
	authenticateLogout gin.HandlerFunc
	guard              middleware.Guard
	limiter            *middleware.IPRateLimiter
	checks             map[string]HealthCheck
	metrics            http.Handler
}

type Services struct {
	Auth        *service.AuthService
	MFA         *service.MFAService
	Security    *service.SecurityService
	Users       *service.UserService
	Permissions *service.PermissionService
}

func NewHandlerSet(
	log zerolog.Logger,
	environment string,
	svc Services,
	limiter *middleware.IPRateLimiter,
	checks map[string]HealthCheck,
	metrics http.Handler,
) HandlerSet {
	return HandlerSet{
		log:                log,
		environment:        environment,
		auth:               svc.Auth,
		mfa:                svc.MFA,
		security:           svc.Security,
		users:              svc.Users,
		permissions:        svc.Permissions,
		authenticate:       middleware.Auth(svc.Auth, svc.Security),
		authenticateLogout: middleware.Auth(svc.Auth, nil),
		guard:              svc.Permissions,
		limiter:            limiter,
		checks:             checks,
		metrics:            metrics,
	}
}

func guarded(guard middleware.Guard, resource models.Resource, action models.Action) gin.HandlerFunc {
	return middleware.RequirePermissions(guard, models.Require(resource, action))
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	throttled := middleware.RateLimit(h.limiter)

	auth := v1.Group("/auth")
	{
		auth.POST("/register", h.SignUp)
		auth.POST("/login", throttled, h.Login)
		auth.POST("/password/expired", throttled, h.ChangeExpiredPassword)
		auth.POST("/password/forgot", throttled, h.ForgotPassword)
		auth.POST("/password/reset", h.ResetPassword)
		auth.POST("/logout", h.authenticateLogout, h.Logout)

		protected := auth.Group("")
		protected.Use(h.authenticate)
		protected.POST("/validate", h.Validate)
		protected.GET("/me", h.Me)
		protected.POST("/password/change", h.ChangePassword)
		protected.POST("/mfa/setup", h.SetupMFA)
		protected.POST("/mfa/enable", h.EnableMFA)
		protected.POST("/mfa/disable", h.DisableMFA)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:id", h.RevokeSession)
	}

	admin := v1.Group("/admin")
	admin.Use(h.authenticate)

	users := admin.Group("/users")
	{
		view := guarded(h.guard, models.ResourceUsers, models.ActionView)
		create := guarded(h.guard, models.ResourceUsers, models.ActionCreate)
		update := guarded(h.guard, models.ResourceUsers, models.ActionUpdate)
		remove := guarded(h.guard, models.ResourceUsers, models.ActionDelete)
		viewPerms := guarded(h.guard, models.ResourcePermissions, models.ActionView)
		updatePerms := guarded(h.guard, models.ResourcePermissions, models.ActionUpdate)

		users.GET("", view, h.ListUsers)
		users.GET("/stats", view, h.UserStats)
		users.POST("", create, h.CreateUser)
		users.PATCH("/bulk/status", update, h.BulkUpdateStatus)
		users.DELETE("/bulk", remove, h.BulkDeleteUsers)
		users.GET("/:id", view, h.GetUser)
		users.PATCH("/:id", update, h.UpdateUser)
		users.PATCH("/:id/password", update, h.UpdateUserPassword)
		users.PATCH("/:id/role", update, h.UpdateUserRole)
		users.PATCH("/:id/toggle-status", update, h.ToggleUserStatus)
		users.PATCH("/:id/status", update, h.SetUserStatus)
		users.DELETE("/:id", remove, h.DeleteUser)
		users.GET("/:id/permissions", viewPerms, h.UserPermissions)
		users.PUT("/:id/permissions", updatePerms, h.ReplaceUserPermissions)
	}

	perms := admin.Group("/permissions")
	{
		perms.GET("", guarded(h.guard, models.ResourcePermissions, models.ActionView), h.ListPermissions)
		perms.POST("/seed", guarded(h.guard, models.ResourcePermissions, models.ActionUpdate), h.SeedPermissions)
	}

	sec := admin.Group("/security")
	{
		view := guarded(h.guard, models.ResourceAuth, models.ActionView)
		update := guarded(h.guard, models.ResourceAuth, models.ActionUpdate)

		sec.GET("/logs", view, h.ListSecurityLogs)
		sec.PATCH("/logs/:id/resolve", update, h.ResolveSecurityLog)
		sec.GET("/stats", view, h.SecurityStats)
		sec.GET("/users/:id/sessions", view, h.UserSessions)
		sec.DELETE("/users/:id/sessions", update, h.RevokeUserSessions)
		sec.POST("/users/:id/unlock", update, h.UnlockUser)
	}
}

// Metrics serves the prometheus scrape endpoint.
func (h HandlerSet) Metrics(c *gin.Context) {
	h.metrics.ServeHTTP(c.Writer, c.Request)
}
