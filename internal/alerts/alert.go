// Package alerts carries high and critical security events over a Redis stream
// to a separate worker.
package alerts

import (
	"fmt"
	"time"

	"storeadmin/api/internal/models"
)

type Alert struct {
	ID          string
	Type        models.SecurityEventType
	Risk        models.RiskLevel
	UserID      string
	Description string
	IPAddress   string
	CreatedAt   time.Time
}

func fromEntry(entry models.SecurityLog) map[string]any {
	userID := ""
	if entry.UserID != nil {
		userID = *entry.UserID
	}
	return map[string]any{
		"id":          entry.ID,
		"type":        string(entry.EventType),
		"risk":        string(entry.RiskLevel),
		"userId":      userID,
		"description": entry.Description,
		"ip":          entry.IPAddress,
		"createdAt":   entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decode(values map[string]any) (Alert, error) {
	str := func(key string) string {
		if v, ok := values[key].(string); ok {
			return v
		}
		return ""
	}

	alert := Alert{
		ID:          str("id"),
		Type:        models.SecurityEventType(str("type")),
		Risk:        models.RiskLevel(str("risk")),
		UserID:      str("userId"),
		Description: str("description"),
		IPAddress:   str("ip"),
	}
	if !alert.Type.Valid() {
		return Alert{}, fmt.Errorf("unknown event type %q", alert.Type)
	}
	if !alert.Risk.Valid() {
		return Alert{}, fmt.Errorf("unknown risk level %q", alert.Risk)
	}
	if raw := str("createdAt"); raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Alert{}, fmt.Errorf("parse createdAt: %w", err)
		}
		alert.CreatedAt = at
	}
	return alert, nil
}
