package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shift-health/pipeline/pkg/metrics"
	"github.com/shift-health/pipeline/pkg/models"
	"github.com/shift-health/pipeline/pkg/push"
	"github.com/shift-health/pipeline/pkg/warehouse"
)

// SelectorConfig holds the selector's fixed policy constants (spec.md
// §4.D steps 7-8).
type SelectorConfig struct {
	RateLimitWindow  time.Duration
	RateLimitMax     int
	OnboardingWindow time.Duration
}

// SelectorService implements the intervention-selector worker (spec.md
// §4.D): per state-estimates message, choose at most one intervention
// under preference scoring, suppression, and a rate limit, persist it,
// and optionally push.
type SelectorService struct {
	states        *warehouse.StateRepository
	catalog       *warehouse.CatalogRepository
	preferences   *warehouse.PreferenceRepository
	instances     *warehouse.InstanceRepository
	statusChanges *warehouse.StatusChangeRepository
	devices       *warehouse.DeviceRepository
	interactions  *warehouse.InteractionRepository
	pusher        push.Provider
	cfg           SelectorConfig
	notifier      DefectNotifier
	now           func() time.Time
}

func NewSelectorService(
	states *warehouse.StateRepository,
	catalog *warehouse.CatalogRepository,
	preferences *warehouse.PreferenceRepository,
	instances *warehouse.InstanceRepository,
	statusChanges *warehouse.StatusChangeRepository,
	devices *warehouse.DeviceRepository,
	interactions *warehouse.InteractionRepository,
	pusher push.Provider,
	cfg SelectorConfig,
) *SelectorService {
	return &SelectorService{
		states: states, catalog: catalog, preferences: preferences, instances: instances,
		statusChanges: statusChanges, devices: devices, interactions: interactions,
		pusher: pusher, cfg: cfg, now: time.Now,
	}
}

// SetDefectNotifier wires an optional operator-alerting sink.
func (s *SelectorService) SetDefectNotifier(n DefectNotifier) {
	s.notifier = n
}

// HandleStateEstimate runs the full selector algorithm for one
// state-estimates message (spec.md §4.D steps 1-10). A nil return with
// no side effects means "exit" per one of the documented early-exit
// conditions — none of those are errors.
func (s *SelectorService) HandleStateEstimate(ctx context.Context, msg models.StateEstimateMessage) error {
	// Step 1: load state.
	state, err := s.states.Latest(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, warehouse.ErrNotFound) {
			metrics.SelectorDecisionsTotal.WithLabelValues("no_state").Inc()
			return nil
		}
		return Transient(err)
	}
	if !state.Timestamp.Equal(msg.Timestamp) {
		slog.WarnContext(ctx, "selector: state estimate timestamp differs from triggering message",
			"user_id", msg.UserID, "state_ts", state.Timestamp, "message_ts", msg.Timestamp)
	}

	// Step 2: bucket.
	if state.Stress == nil {
		metrics.SelectorDecisionsTotal.WithLabelValues("no_stress").Inc()
		return nil
	}
	bucket := models.BucketStress(*state.Stress)

	// Step 3: candidate set.
	candidates, err := s.catalog.CandidatesForBucket(ctx, bucket)
	if err != nil {
		return Transient(err)
	}
	if len(candidates) == 0 {
		metrics.SelectorDecisionsTotal.WithLabelValues("no_candidate").Inc()
		return nil
	}

	// Step 4: preference lookup.
	prefs, err := s.preferences.ForUser(ctx, msg.UserID)
	if err != nil {
		return Transient(err)
	}

	// Step 5 + 6: score, filter, select.
	chosen, ok := selectCandidate(candidates, prefs)
	if !ok {
		metrics.SelectorDecisionsTotal.WithLabelValues("suppressed_all").Inc()
		return nil
	}

	// Step 7: onboarding gate.
	if models.IsOnboardingKey(chosen.InterventionKey) {
		events, err := s.interactions.ForUser(ctx, msg.UserID)
		if err != nil {
			return Transient(err)
		}
		completed := FlowCompleted(events, models.GettingStartedFlowID)
		if !completed {
			exists, err := s.instances.ExistsCreatedWithKey(ctx, msg.UserID, chosen.InterventionKey)
			if err != nil {
				return Transient(err)
			}
			if exists {
				metrics.SelectorDecisionsTotal.WithLabelValues("onboarding_gated").Inc()
				return nil
			}
		}
	}

	// Step 8: rate limit.
	since := s.now().Add(-s.cfg.RateLimitWindow)
	count, err := s.instances.CountCreatedSince(ctx, msg.UserID, since)
	if err != nil {
		return Transient(err)
	}
	if count >= s.cfg.RateLimitMax {
		metrics.SelectorRateLimitRejectionsTotal.Inc()
		metrics.SelectorDecisionsTotal.WithLabelValues("rate_limited").Inc()
		return nil
	}

	// Step 9: persist.
	traceID := state.TraceID
	if traceID == "" {
		traceID = models.NewTraceID()
		metrics.TraceabilityDefectsTotal.WithLabelValues("selector").Inc()
		slog.WarnContext(ctx, "traceability defect: state estimate missing trace id, minted one", "user_id", msg.UserID)
		notifyDefect(ctx, s.notifier, "selector", "state estimate missing trace id for user "+msg.UserID)
	}

	now := s.now().UTC()
	instance := &models.InterventionInstance{
		InstanceID:      models.NewID(),
		UserID:          msg.UserID,
		TraceID:         traceID,
		Metric:          "stress",
		Level:           string(bucket),
		Surface:         chosen.Surface,
		InterventionKey: chosen.InterventionKey,
		CreatedAt:       now,
		ScheduledAt:     now,
		Status:          models.StatusCreated,
	}
	if err := s.instances.Create(ctx, instance); err != nil {
		// Warehouse append failures are fatal for this message
		// (spec.md §7): the worker logs the error and drops the message.
		return Transient(err)
	}
	metrics.SelectorDecisionsTotal.WithLabelValues("selected").Inc()

	// Step 10: deliver (best-effort).
	s.deliver(ctx, instance)

	return nil
}

// selectCandidate implements spec.md §4.D steps 5-6: filter suppressed
// surfaces, score the rest, argmax with lexicographic tie-break on
// intervention_key.
func selectCandidate(candidates []models.CatalogEntry, prefs map[string]models.SurfacePreference) (models.CatalogEntry, bool) {
	type scored struct {
		entry models.CatalogEntry
		score float64
	}
	var survivors []scored

	for _, c := range candidates {
		pref := prefs[c.Surface] // zero value if absent: shown_count 0, preference_score 0
		if pref.Suppressed() {
			continue
		}
		survivors = append(survivors, scored{entry: c, score: pref.FinalScore()})
	}
	if len(survivors) == 0 {
		return models.CatalogEntry{}, false
	}

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].entry.InterventionKey < survivors[j].entry.InterventionKey
	})

	return survivors[0].entry, true
}

// deliver resolves the user's device token and, if present, calls the
// push provider (spec.md §4.D step 10). Failure or missing token records
// nothing — the instance remains "created"; push failures are
// intentionally non-fatal and never transition the instance to "failed"
// (spec.md §7).
func (s *SelectorService) deliver(ctx context.Context, instance *models.InterventionInstance) {
	device, err := s.devices.Get(ctx, instance.UserID)
	if err != nil {
		if !errors.Is(err, warehouse.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to look up device registration", "user_id", instance.UserID, "error", err)
		}
		metrics.PushDeliveryTotal.WithLabelValues("no_token").Inc()
		return
	}

	entry, err := s.catalog.Get(ctx, instance.InterventionKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to look up catalog entry for delivery", "intervention_key", instance.InterventionKey, "error", err)
		metrics.PushDeliveryTotal.WithLabelValues("failed").Inc()
		return
	}

	if err := s.pusher.Send(ctx, device.DeviceToken, entry.Title, entry.Body, instance.InstanceID); err != nil {
		slog.WarnContext(ctx, "push delivery failed", "instance_id", instance.InstanceID, "error", err)
		metrics.PushDeliveryTotal.WithLabelValues("failed").Inc()
		return
	}

	metrics.PushDeliveryTotal.WithLabelValues("sent").Inc()
	change := &models.InterventionStatusChange{
		ChangeID:   models.NewID(),
		InstanceID: instance.InstanceID,
		TraceID:    instance.TraceID,
		UserID:     instance.UserID,
		NewStatus:  models.StatusSent,
		SentAt:     ptrTime(s.now().UTC()),
		ChangedAt:  s.now().UTC(),
	}
	if err := s.statusChanges.Append(ctx, change); err != nil {
		slog.ErrorContext(ctx, "failed to append sent status change", "instance_id", instance.InstanceID, "error", err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
