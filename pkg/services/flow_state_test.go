package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shift-health/pipeline/pkg/models"
)

func interactionAt(t *testing.T, eventType models.InteractionEventType, ts time.Time, payload any) models.AppInteraction {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.AppInteraction{
		InteractionID: "interaction-" + ts.String(),
		UserID:        "user-1",
		EventType:     eventType,
		Timestamp:     ts,
		Payload:       raw,
	}
}

func TestFlowCompleted(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no events", func(t *testing.T) {
		if FlowCompleted(nil, models.GettingStartedFlowID) {
			t.Error("expected false with no events")
		}
	})

	t.Run("completed and never reset", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowCompleted, base, models.FlowCompletedPayload{FlowID: models.GettingStartedFlowID}),
		}
		if !FlowCompleted(events, models.GettingStartedFlowID) {
			t.Error("expected true")
		}
	})

	t.Run("completed then reset with scope flows", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowCompleted, base, models.FlowCompletedPayload{FlowID: models.GettingStartedFlowID}),
			interactionAt(t, models.EventFlowReset, base.Add(time.Minute), models.FlowResetPayload{Scope: models.ResetFlows}),
		}
		if FlowCompleted(events, models.GettingStartedFlowID) {
			t.Error("expected false after reset with scope flows")
		}
	})

	t.Run("completed then reset with scope saved does not clear it", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowCompleted, base, models.FlowCompletedPayload{FlowID: models.GettingStartedFlowID}),
			interactionAt(t, models.EventFlowReset, base.Add(time.Minute), models.FlowResetPayload{Scope: models.ResetSaved}),
		}
		if !FlowCompleted(events, models.GettingStartedFlowID) {
			t.Error("expected true: a saved-only reset must not clear flow completion")
		}
	})

	t.Run("reset before completion does not clear it", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowReset, base, models.FlowResetPayload{Scope: models.ResetAll}),
			interactionAt(t, models.EventFlowCompleted, base.Add(time.Minute), models.FlowCompletedPayload{FlowID: models.GettingStartedFlowID}),
		}
		if !FlowCompleted(events, models.GettingStartedFlowID) {
			t.Error("expected true: completion after reset is still completed")
		}
	})

	t.Run("completion for a different flow id is ignored", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowCompleted, base, models.FlowCompletedPayload{FlowID: "some_other_flow"}),
		}
		if FlowCompleted(events, models.GettingStartedFlowID) {
			t.Error("expected false for an unrelated flow id")
		}
	})
}

func TestRecentFlowRequested(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	since := base.Add(-5 * time.Minute)

	t.Run("requested within window", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowRequested, base.Add(-time.Minute), models.FlowRequestedPayload{FlowID: models.GettingStartedFlowID}),
		}
		if !RecentFlowRequested(events, models.GettingStartedFlowID, since) {
			t.Error("expected true")
		}
	})

	t.Run("requested before window", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowRequested, base.Add(-time.Hour), models.FlowRequestedPayload{FlowID: models.GettingStartedFlowID}),
		}
		if RecentFlowRequested(events, models.GettingStartedFlowID, since) {
			t.Error("expected false")
		}
	})

	t.Run("requested for a different flow id", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventFlowRequested, base, models.FlowRequestedPayload{FlowID: "other_flow"}),
		}
		if RecentFlowRequested(events, models.GettingStartedFlowID, since) {
			t.Error("expected false for an unrelated flow id")
		}
	})
}

func TestSavedInterventionKeys(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("saved and never unsaved or reset", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventInterventionSaved, base, models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
		}
		got := SavedInterventionKeys(events)
		if len(got) != 1 || got[0] != "breathe_medium" {
			t.Errorf("got %v, want [breathe_medium]", got)
		}
	})

	t.Run("saved then unsaved", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventInterventionSaved, base, models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
			interactionAt(t, models.EventInterventionUnsave, base.Add(time.Minute), models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
		}
		got := SavedInterventionKeys(events)
		if len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("saved then reset with scope all clears it", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventInterventionSaved, base, models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
			interactionAt(t, models.EventFlowReset, base.Add(time.Minute), models.FlowResetPayload{Scope: models.ResetAll}),
		}
		got := SavedInterventionKeys(events)
		if len(got) != 0 {
			t.Errorf("got %v, want empty after reset", got)
		}
	})

	t.Run("saved then reset with scope flows does not clear it", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventInterventionSaved, base, models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
			interactionAt(t, models.EventFlowReset, base.Add(time.Minute), models.FlowResetPayload{Scope: models.ResetFlows}),
		}
		got := SavedInterventionKeys(events)
		if len(got) != 1 || got[0] != "breathe_medium" {
			t.Errorf("got %v, want [breathe_medium]: a flows-only reset must not clear the saved set", got)
		}
	})

	t.Run("saved again after reset", func(t *testing.T) {
		events := []models.AppInteraction{
			interactionAt(t, models.EventInterventionSaved, base, models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
			interactionAt(t, models.EventFlowReset, base.Add(time.Minute), models.FlowResetPayload{Scope: models.ResetSaved}),
			interactionAt(t, models.EventInterventionSaved, base.Add(2*time.Minute), models.InterventionSavedPayload{InterventionKey: "breathe_medium"}),
		}
		got := SavedInterventionKeys(events)
		if len(got) != 1 || got[0] != "breathe_medium" {
			t.Errorf("got %v, want [breathe_medium]", got)
		}
	})
}
