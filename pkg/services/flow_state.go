package services

import (
	"sort"
	"time"

	"github.com/shift-health/pipeline/pkg/models"
)

// flowState folds the ordered app-interaction event stream into the
// derived views both the selector's onboarding gate (spec.md §4.D step
// 7) and the aggregator (spec.md §4.E steps 3 and 5) need. Computed
// purely from events — "dynamic JSON payloads... map to a tagged sum
// over the enumerated event types" (spec.md §9).

// FlowCompleted reports whether flowID is currently completed: the
// latest flow_completed{flow_id=flowID} event exists and is not
// superseded by a later flow_reset with scope in {all, flows}.
func FlowCompleted(events []models.AppInteraction, flowID string) bool {
	var completedAt, resetAt *int
	for i, ev := range events {
		idx := i
		switch ev.EventType {
		case models.EventFlowCompleted:
			if p, ok := ev.DecodeFlowCompleted(); ok && p.FlowID == flowID {
				completedAt = &idx
			}
		case models.EventFlowReset:
			if p, ok := ev.DecodeFlowReset(); ok && p.Scope.AppliesToFlows() {
				resetAt = &idx
			}
		}
	}
	if completedAt == nil {
		return false
	}
	if resetAt != nil && *resetAt > *completedAt {
		return false
	}
	return true
}

// RecentFlowRequested reports whether a flow_requested{flow_id=flowID}
// event exists at or after since.
func RecentFlowRequested(events []models.AppInteraction, flowID string, since time.Time) bool {
	for _, ev := range events {
		if ev.EventType != models.EventFlowRequested {
			continue
		}
		p, ok := ev.DecodeFlowRequested()
		if !ok || p.FlowID != flowID {
			continue
		}
		if !ev.Timestamp.Before(since) {
			return true
		}
	}
	return false
}

// SavedInterventionKeys computes the current saved set (spec.md §4.E
// step 5): for each key, take the latest of intervention_saved/unsaved;
// keep keys whose latest event is "saved" and strictly later than the
// most recent reset with scope in {all, saved}.
func SavedInterventionKeys(events []models.AppInteraction) []string {
	var lastResetIdx = -1
	for i, ev := range events {
		if ev.EventType != models.EventFlowReset {
			continue
		}
		if p, ok := ev.DecodeFlowReset(); ok && p.Scope.AppliesToSaved() {
			lastResetIdx = i
		}
	}

	type state struct {
		saved bool
		idx   int
	}
	latest := make(map[string]state)

	for i, ev := range events {
		var key string
		var saved bool
		switch ev.EventType {
		case models.EventInterventionSaved:
			if p, ok := ev.DecodeInterventionSaved(); ok {
				key, saved = p.InterventionKey, true
			}
		case models.EventInterventionUnsave:
			if p, ok := ev.DecodeInterventionSaved(); ok {
				key, saved = p.InterventionKey, false
			}
		default:
			continue
		}
		if key == "" {
			continue
		}
		latest[key] = state{saved: saved, idx: i}
	}

	var out []string
	for key, st := range latest {
		if st.saved && st.idx > lastResetIdx {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
