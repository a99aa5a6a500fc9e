package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shift-health/pipeline/pkg/metrics"
	"github.com/shift-health/pipeline/pkg/models"
	"github.com/shift-health/pipeline/pkg/warehouse"
)

// InteractionService implements submit-interaction and reset (spec.md
// §4.B).
type InteractionService struct {
	interactions  *warehouse.InteractionRepository
	statusChanges *warehouse.StatusChangeRepository
	notifier      DefectNotifier
	now           func() time.Time
}

func NewInteractionService(interactions *warehouse.InteractionRepository, statusChanges *warehouse.StatusChangeRepository) *InteractionService {
	return &InteractionService{interactions: interactions, statusChanges: statusChanges, now: time.Now}
}

// SetDefectNotifier wires an optional operator-alerting sink.
func (s *InteractionService) SetDefectNotifier(n DefectNotifier) {
	s.notifier = n
}

// InteractionRequest is the decoded POST /app_interactions body
// (spec.md §6).
type InteractionRequest struct {
	TraceID    string
	UserID     string
	InstanceID *string
	EventType  models.InteractionEventType
	Timestamp  time.Time
	Payload    json.RawMessage
}

// SubmitInteraction appends one app-interaction row and, for tapped/
// dismissed events, additionally records the corresponding status
// change. Status-change failures must not cause the interaction log
// append to be lost (spec.md §4.B) — the append always happens first and
// is returned to the caller even if the status-change write fails.
func (s *InteractionService) SubmitInteraction(ctx context.Context, authedUserID string, req InteractionRequest) (string, error) {
	if authedUserID != req.UserID {
		return "", ErrForbidden
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = models.NewTraceID()
		metrics.TraceabilityDefectsTotal.WithLabelValues("interaction").Inc()
		slog.WarnContext(ctx, "traceability defect: interaction missing trace id, minted one", "user_id", req.UserID)
		notifyDefect(ctx, s.notifier, "interaction", fmt.Sprintf("app interaction for user %s missing trace id", req.UserID))
	}

	ev := &models.AppInteraction{
		InteractionID: models.NewID(),
		TraceID:       traceID,
		UserID:        req.UserID,
		InstanceID:    req.InstanceID,
		EventType:     req.EventType,
		Timestamp:     req.Timestamp,
		Payload:       req.Payload,
	}
	if err := s.interactions.Append(ctx, ev); err != nil {
		return "", Transient(err)
	}

	if (req.EventType == models.EventTapped || req.EventType == models.EventDismissed) && req.InstanceID != nil {
		newStatus := models.StatusAccepted
		if req.EventType == models.EventDismissed {
			newStatus = models.StatusDismissed
		}
		change := &models.InterventionStatusChange{
			ChangeID:   models.NewID(),
			InstanceID: *req.InstanceID,
			TraceID:    traceID,
			UserID:     req.UserID,
			NewStatus:  newStatus,
			ChangedAt:  s.now().UTC(),
		}
		if err := s.statusChanges.Append(ctx, change); err != nil {
			slog.ErrorContext(ctx, "failed to record status change for interaction",
				"interaction_id", ev.InteractionID, "instance_id", *req.InstanceID, "error", err)
		}
	}

	return ev.InteractionID, nil
}

// Reset appends a synthetic flow_reset row (spec.md §4.B). No deletes;
// downstream views treat the reset timestamp as a barrier.
func (s *InteractionService) Reset(ctx context.Context, userID string, scope models.ResetScope) (string, error) {
	if !models.ValidResetScope(string(scope)) {
		return "", NewValidationError("scope", "must be one of all, flows, saved")
	}

	payload, err := json.Marshal(models.FlowResetPayload{Scope: scope})
	if err != nil {
		return "", NewValidationError("scope", "failed to encode reset payload")
	}

	ev := &models.AppInteraction{
		InteractionID: models.NewID(),
		TraceID:       models.NewTraceID(),
		UserID:        userID,
		EventType:     models.EventFlowReset,
		Timestamp:     s.now().UTC(),
		Payload:       payload,
	}
	if err := s.interactions.Append(ctx, ev); err != nil {
		return "", Transient(err)
	}
	return ev.InteractionID, nil
}
