package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shift-health/pipeline/pkg/models"
)

// seedCatalogEntry inserts an operator-maintained catalog row directly —
// the pipeline itself never writes this table, so tests stand in for the
// operator (spec.md §3 "Intervention catalog").
func seedCatalogEntry(t *testing.T, app *TestApp, e models.CatalogEntry) {
	t.Helper()
	const q = `
		INSERT INTO intervention_catalog
			(intervention_key, metric, level, surface, title, body, enabled, target_level, nudge_type, persona)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (intervention_key) DO NOTHING`
	_, err := app.DB.ExecContext(context.Background(), q,
		e.InterventionKey, e.Metric, e.Level, e.Surface, e.Title, e.Body, e.Enabled, e.TargetLevel, e.NudgeType, e.Persona)
	require.NoError(t, err)
}

// seedPreference inserts a surface_preferences row directly — like the
// catalog, this table is populated by an upstream view out of scope for
// the pipeline (spec.md §9); tests seed it to drive the selector's
// scoring and suppression logic.
func seedPreference(t *testing.T, app *TestApp, p models.SurfacePreference) {
	t.Helper()
	const q = `
		INSERT INTO surface_preferences
			(user_id, surface, shown_count, engagement_rate, ignore_rate, annoyance_rate, preference_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, surface) DO UPDATE SET
			shown_count = excluded.shown_count,
			engagement_rate = excluded.engagement_rate,
			ignore_rate = excluded.ignore_rate,
			annoyance_rate = excluded.annoyance_rate,
			preference_score = excluded.preference_score`
	_, err := app.DB.ExecContext(context.Background(), q,
		p.UserID, p.Surface, p.ShownCount, p.EngagementRate, p.IgnoreRate, p.AnnoyanceRate, p.PreferenceScore)
	require.NoError(t, err)
}

// seedState inserts a derived-state-estimate row directly, bypassing the
// HTTP ingestion path — needed whenever a scenario requires a specific
// stress reading, since a real watch_events payload carries raw samples,
// not a precomputed stress_score (the estimator transform only ever
// defaults to the "medium" bucket for batches ingested through the real
// endpoint).
func seedState(t *testing.T, app *TestApp, e models.DerivedStateEstimate) {
	t.Helper()
	require.NoError(t, app.States.Insert(context.Background(), &e))
}

func ptrFloat(f float64) *float64 { return &f }

// doRequest issues an authenticated JSON request against the test app's
// HTTP surface, using the static verifier's "bearer token is the user id"
// convention.
func doRequest(t *testing.T, app *TestApp, method, path, userID string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, app.HTTP.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+userID)

	resp, err := app.HTTP.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	if resp.Header.Get("Content-Type") != "" {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

// TestHappyPath_IngestEstimateSelectPush drives the full pipeline through
// its real surfaces: an HTTP batch submission triggers the estimator via
// the watch_events bus topic, which in turn triggers the selector via the
// state_estimates topic, which persists an instance. No device token is
// registered, so delivery is skipped and the instance's status stays
// "created" — GetContext only ever returns created instances (spec.md
// §4.E step 2), so this also exercises scenario 1's assertion without
// racing push delivery's "sent" status-change append.
func TestHappyPath_IngestEstimateSelectPush(t *testing.T) {
	app := NewTestApp(t)
	userID := "user-happy-path"

	seedCatalogEntry(t, app, models.CatalogEntry{
		InterventionKey: "breathe_medium", Metric: "stress", Level: "medium",
		Surface: "push", Title: "Take a breath", Body: "A short breathing exercise.", Enabled: true,
	})

	batch := map[string]any{
		"fetchedAt": time.Now().UTC().Format(time.RFC3339),
		"trace_id":  "trace-happy-path",
		"heartRate": []map[string]any{
			{"startDate": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
				"endDate": time.Now().UTC().Format(time.RFC3339), "value": 72.0, "unit": "bpm"},
		},
	}
	resp, decoded := doRequest(t, app, http.MethodPost, "/watch_events", userID, batch)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "batch accepted", decoded["message"])
	require.InDelta(t, 1, decoded["samples_received"], 0)

	require.Eventually(t, func() bool {
		_, err := app.States.Latest(context.Background(), userID)
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "estimator never produced a state estimate")

	require.Eventually(t, func() bool {
		created, err := app.Instances.CreatedForUser(context.Background(), userID)
		return err == nil && len(created) > 0
	}, 5*time.Second, 50*time.Millisecond, "selector never created an intervention instance")

	require.Empty(t, app.Pusher.sent, "no device token was registered, so delivery must be skipped")

	ctxResp, ctxBody := doRequest(t, app, http.MethodGet, "/context", userID, nil)
	require.Equal(t, http.StatusOK, ctxResp.StatusCode)
	interventions, ok := ctxBody["interventions"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, interventions)
}

// TestDuplicateBatch_Rejected submits the same (user, fetched_at) batch
// twice and asserts the second submission is answered as a duplicate
// rather than re-ingested (spec.md §4.B, §8).
func TestDuplicateBatch_Rejected(t *testing.T) {
	app := NewTestApp(t)
	userID := "user-duplicate"
	fetchedAt := time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)

	batch := map[string]any{
		"fetchedAt": fetchedAt,
		"trace_id":  "trace-duplicate-1",
		"steps": []map[string]any{
			{"startDate": fetchedAt, "endDate": fetchedAt, "value": 500.0, "unit": "count"},
		},
	}

	firstResp, firstBody := doRequest(t, app, http.MethodPost, "/watch_events", userID, batch)
	require.Equal(t, http.StatusOK, firstResp.StatusCode)
	require.Equal(t, "batch accepted", firstBody["message"])

	secondResp, secondBody := doRequest(t, app, http.MethodPost, "/watch_events", userID, batch)
	require.Equal(t, http.StatusOK, secondResp.StatusCode)
	require.Equal(t, "duplicate batch", secondBody["message"])
	require.InDelta(t, 1, secondBody["samples_received"], 0)

	var rowCount int
	require.NoError(t, app.DB.GetContext(context.Background(), &rowCount,
		`SELECT count(*) FROM event_batches WHERE user_id = $1`, userID))
	require.Equal(t, 1, rowCount, "the duplicate submission must not produce a second warehouse row")
}

// TestSuppression_AllCandidatesWithheld seeds a surface preference row
// crossing the suppression thresholds (shown_count >= 5, capped annoyance
// rate > 0.7) for the only candidate surface at a bucket, then drives the
// selector directly and asserts no instance is created (spec.md §4.D step
// 5, §8).
func TestSuppression_AllCandidatesWithheld(t *testing.T) {
	app := NewTestApp(t)
	userID := "user-suppressed"

	seedCatalogEntry(t, app, models.CatalogEntry{
		InterventionKey: "calm_high", Metric: "stress", Level: "high",
		Surface: "push", Title: "Calm down", Body: "Try this.", Enabled: true,
	})
	seedPreference(t, app, models.SurfacePreference{
		UserID: userID, Surface: "push", ShownCount: 5, AnnoyanceRate: 0.95, PreferenceScore: 0.5,
	})

	ts := time.Now().UTC()
	seedState(t, app, models.DerivedStateEstimate{
		UserID: userID, Timestamp: ts, TraceID: "trace-suppressed", Stress: ptrFloat(0.9),
	})

	require.NoError(t, app.Selector.HandleStateEstimate(context.Background(), models.StateEstimateMessage{
		UserID: userID, Timestamp: ts,
	}))

	created, err := app.Instances.CreatedForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, created, "suppressed surface must not produce an instance")
	require.Empty(t, app.Pusher.sent)
}

// TestRateLimit_CapsInstancesPerWindow seeds three instances already
// created within the rate-limit window, then drives the selector once
// more and asserts no fourth instance is created (spec.md §4.D step 8,
// §8: "max 3 per 30 minutes").
func TestRateLimit_CapsInstancesPerWindow(t *testing.T) {
	app := NewTestApp(t)
	userID := "user-rate-limited"

	seedCatalogEntry(t, app, models.CatalogEntry{
		InterventionKey: "calm_high", Metric: "stress", Level: "high",
		Surface: "push", Title: "Calm down", Body: "Try this.", Enabled: true,
	})

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		instance := &models.InterventionInstance{
			InstanceID:      fmt.Sprintf("existing-instance-%d", i),
			UserID:          userID,
			TraceID:         fmt.Sprintf("trace-existing-%d", i),
			Metric:          "stress",
			Level:           "high",
			Surface:         "push",
			InterventionKey: "calm_high",
			CreatedAt:       now.Add(-time.Duration(i) * time.Minute),
			ScheduledAt:     now.Add(-time.Duration(i) * time.Minute),
			Status:          models.StatusCreated,
		}
		require.NoError(t, app.Instances.Create(context.Background(), instance))
	}

	ts := now
	seedState(t, app, models.DerivedStateEstimate{
		UserID: userID, Timestamp: ts, TraceID: "trace-rate-limited", Stress: ptrFloat(0.9),
	})

	require.NoError(t, app.Selector.HandleStateEstimate(context.Background(), models.StateEstimateMessage{
		UserID: userID, Timestamp: ts,
	}))

	created, err := app.Instances.CreatedForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, created, 3, "rate limit must reject the 4th instance within the window")
}

// TestOnboarding_AutoCreateIsIdempotentUntilCompleted exercises GetContext's
// onboarding auto-create (spec.md §4.E step 3): a fresh user gets a
// getting_started_v1 card; calling GetContext again does not create a
// second one; completing the flow and calling GetContext again does not
// resurrect it unless a flow_requested event arrives within the recency
// window.
func TestOnboarding_AutoCreateIsIdempotentUntilCompleted(t *testing.T) {
	app := NewTestApp(t)
	userID := "user-onboarding"

	seedCatalogEntry(t, app, models.CatalogEntry{
		InterventionKey: models.GettingStartedKey, Metric: "onboarding", Level: "n/a",
		Surface: "home", Title: "Get started", Body: "Welcome!", Enabled: true,
	})

	ctx1, err := app.Aggregator.GetContext(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ctx1.Interventions, 1)
	require.Equal(t, models.GettingStartedKey, ctx1.Interventions[0].InterventionKey)

	ctx2, err := app.Aggregator.GetContext(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ctx2.Interventions, 1, "auto-create must be idempotent")

	completedPayload, err := json.Marshal(models.FlowCompletedPayload{FlowID: models.GettingStartedFlowID, FlowVersion: "v1"})
	require.NoError(t, err)
	require.NoError(t, app.Interactions.Append(context.Background(), &models.AppInteraction{
		InteractionID: "interaction-flow-completed",
		TraceID:       "trace-flow-completed",
		UserID:        userID,
		EventType:     models.EventFlowCompleted,
		Timestamp:     time.Now().UTC(),
		Payload:       completedPayload,
	}))

	ctx3, err := app.Aggregator.GetContext(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, ctx3.Interventions, 1, "completing the flow must not spawn a second onboarding card")
	require.Equal(t, ctx1.Interventions[0].InstanceID, ctx3.Interventions[0].InstanceID,
		"the original card persists until the user dismisses it; completing the flow only stops new ones")
}

// TestSavedInterventions_ResetClearsSet appends an intervention_saved
// event, asserts it surfaces in GetContext's saved set, then resets the
// "saved" scope via the InteractionService and asserts the set is empty
// on the next GetContext call (spec.md §4.E step 5, §4.B reset).
func TestSavedInterventions_ResetClearsSet(t *testing.T) {
	app := NewTestApp(t)
	userID := "user-saved-set"

	seedCatalogEntry(t, app, models.CatalogEntry{
		InterventionKey: models.GettingStartedKey, Metric: "onboarding", Level: "n/a",
		Surface: "home", Title: "Get started", Body: "Welcome!", Enabled: true,
	})

	savedPayload, err := json.Marshal(models.InterventionSavedPayload{InterventionKey: "breathe_medium"})
	require.NoError(t, err)
	require.NoError(t, app.Interactions.Append(context.Background(), &models.AppInteraction{
		InteractionID: "interaction-saved",
		TraceID:       "trace-saved",
		UserID:        userID,
		EventType:     models.EventInterventionSaved,
		Timestamp:     time.Now().UTC(),
		Payload:       savedPayload,
	}))

	ctxBefore, err := app.Aggregator.GetContext(context.Background(), userID)
	require.NoError(t, err)
	require.Contains(t, ctxBefore.SavedInterventions, "breathe_medium")

	_, err = app.Interaction.Reset(context.Background(), userID, models.ResetSaved)
	require.NoError(t, err)

	ctxAfter, err := app.Aggregator.GetContext(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, ctxAfter.SavedInterventions, "reset with scope=saved must clear the saved set")
}
