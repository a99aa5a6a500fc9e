package api

import (
	"encoding/json"
	"time"

	"github.com/shift-health/pipeline/pkg/models"
)

// watchEventsRequest binds POST /watch_events. TraceID accepts either the
// snake_case or camelCase client alias (spec.md §6: "trace_id (required;
// aliased traceId)").
type watchEventsRequest struct {
	FetchedAt time.Time       `json:"fetchedAt" binding:"required"`
	TraceID   string          `json:"trace_id"`
	TraceIDAlt string         `json:"traceId"`
	HeartRate []models.Sample `json:"heartRate,omitempty"`
	HRV       []models.Sample `json:"hrv,omitempty"`
	Steps     []models.Sample `json:"steps,omitempty"`
	Sleep     []models.Sample `json:"sleep,omitempty"`
	Workouts  []models.Sample `json:"workouts,omitempty"`
}

func (r watchEventsRequest) toBatch() models.HealthDataBatch {
	traceID := r.TraceID
	if traceID == "" {
		traceID = r.TraceIDAlt
	}
	return models.HealthDataBatch{
		FetchedAt: r.FetchedAt,
		TraceID:   traceID,
		HeartRate: r.HeartRate,
		HRV:       r.HRV,
		Steps:     r.Steps,
		Sleep:     r.Sleep,
		Workouts:  r.Workouts,
	}
}

// appInteractionRequest binds POST /app_interactions (spec.md §6).
type appInteractionRequest struct {
	TraceID              string                       `json:"trace_id"`
	UserID               string                       `json:"user_id" binding:"required"`
	InterventionInstance *string                      `json:"intervention_instance_id"`
	EventType            models.InteractionEventType  `json:"event_type" binding:"required"`
	Timestamp            time.Time                    `json:"timestamp" binding:"required"`
	Payload              json.RawMessage              `json:"payload"`
}

// resetRequest binds POST /user/reset (spec.md §6).
type resetRequest struct {
	Scope string `json:"scope" binding:"required"`
}

// appleAuthRequest binds POST /auth/apple (SPEC_FULL.md supplemented
// feature 1).
type appleAuthRequest struct {
	IdentityToken     string `json:"identity_token" binding:"required"`
	AuthorizationCode string `json:"authorization_code"`
}
