package models

import (
	"encoding/json"
	"time"
)

// InteractionEventType enumerates the app-interaction event types the
// pipeline understands (spec.md §3). Any other value is preserved
// verbatim and ignored by the pipeline (§9 forward-compatibility).
type InteractionEventType string

const (
	EventShown              InteractionEventType = "shown"
	EventTapped             InteractionEventType = "tapped"
	EventDismissed          InteractionEventType = "dismissed"
	EventFlowCompleted      InteractionEventType = "flow_completed"
	EventFlowReset          InteractionEventType = "flow_reset"
	EventFlowRequested      InteractionEventType = "flow_requested"
	EventInterventionSaved  InteractionEventType = "intervention_saved"
	EventInterventionUnsave InteractionEventType = "intervention_unsaved"
)

// ResetScope enumerates the valid scopes for flow_reset events and the
// /user/reset endpoint (spec.md §4.B).
type ResetScope string

const (
	ResetAll   ResetScope = "all"
	ResetFlows ResetScope = "flows"
	ResetSaved ResetScope = "saved"
)

// ValidResetScope reports whether s is one of the three defined scopes.
func ValidResetScope(s string) bool {
	switch ResetScope(s) {
	case ResetAll, ResetFlows, ResetSaved:
		return true
	default:
		return false
	}
}

// AppliesToFlows reports whether a reset with this scope clears onboarding
// flow-completion state (scopes "all" and "flows").
func (s ResetScope) AppliesToFlows() bool {
	return s == ResetAll || s == ResetFlows
}

// AppliesToSaved reports whether a reset with this scope clears the saved
// intervention set (scopes "all" and "saved").
func (s ResetScope) AppliesToSaved() bool {
	return s == ResetAll || s == ResetSaved
}

// AppInteraction is one append-only row in the interaction log (spec.md
// §3). Payload is the raw JSON body the client sent; it is decoded into a
// typed view (FlowCompletedPayload, etc.) only by the consumers that need
// it, per event type — everything else treats it as opaque.
type AppInteraction struct {
	InteractionID string               `db:"interaction_id"`
	TraceID       string               `db:"trace_id"`
	UserID        string               `db:"user_id"`
	InstanceID    *string              `db:"instance_id"`
	EventType     InteractionEventType `db:"event_type"`
	Timestamp     time.Time            `db:"ts"`
	Payload       json.RawMessage      `db:"payload"`
}

// FlowCompletedPayload is the decoded payload of a flow_completed event.
type FlowCompletedPayload struct {
	FlowID      string `json:"flow_id"`
	FlowVersion string `json:"flow_version"`
}

// FlowResetPayload is the decoded payload of a flow_reset event.
type FlowResetPayload struct {
	Scope ResetScope `json:"scope"`
}

// FlowRequestedPayload is the decoded payload of a flow_requested event.
type FlowRequestedPayload struct {
	FlowID string `json:"flow_id"`
}

// InterventionSavedPayload is the decoded payload of intervention_saved
// and intervention_unsaved events.
type InterventionSavedPayload struct {
	InterventionKey string `json:"intervention_key"`
}

// DecodeFlowCompleted best-effort decodes a. Returns the zero value and
// false if Payload isn't valid FlowCompletedPayload JSON.
func (a AppInteraction) DecodeFlowCompleted() (FlowCompletedPayload, bool) {
	var p FlowCompletedPayload
	if len(a.Payload) == 0 {
		return p, false
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, false
	}
	return p, true
}

// DecodeFlowReset best-effort decodes a flow_reset payload.
func (a AppInteraction) DecodeFlowReset() (FlowResetPayload, bool) {
	var p FlowResetPayload
	if len(a.Payload) == 0 {
		return p, false
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, false
	}
	return p, true
}

// DecodeFlowRequested best-effort decodes a flow_requested payload.
func (a AppInteraction) DecodeFlowRequested() (FlowRequestedPayload, bool) {
	var p FlowRequestedPayload
	if len(a.Payload) == 0 {
		return p, false
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, false
	}
	return p, true
}

// DecodeInterventionSaved best-effort decodes an intervention_saved or
// intervention_unsaved payload.
func (a AppInteraction) DecodeInterventionSaved() (InterventionSavedPayload, bool) {
	var p InterventionSavedPayload
	if len(a.Payload) == 0 {
		return p, false
	}
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return p, false
	}
	return p, true
}
