package alerts

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storeadmin/api/internal/models"
)

type Recorder interface {
	AlertHandled(risk models.RiskLevel)
}

// LogHandler reports each alert at warn level.
type LogHandler struct {
	logger   zerolog.Logger
	recorder Recorder
}

func NewLogHandler(logger zerolog.Logger, recorder Recorder) *LogHandler {
	return &LogHandler{logger: logger, recorder: recorder}
}

func (h *LogHandler) Handle(_ context.Context, msg redis.XMessage) error {
	alert, err := decode(msg.Values)
	if err != nil {
		return fmt.Errorf("decode alert %s: %w", msg.ID, err)
	}

	h.logger.Warn().
		Str("alert_id", alert.ID).
		Str("event_type", string(alert.Type)).
		Str("risk", string(alert.Risk)).
		Str("user_id", alert.UserID).
		Str("ip", alert.IPAddress).
		Time("created_at", alert.CreatedAt).
		Msg(alert.Description)

	if h.recorder != nil {
		h.recorder.AlertHandled(alert.Risk)
	}
	return nil
}
