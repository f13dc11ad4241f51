package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Environment string            `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks)), Environment: h.environment}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Error().Err(err).Str("check", name).Msg("health check failed")
			resp.Checks[name] = "error"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
