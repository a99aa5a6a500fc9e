package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shift-health/pipeline/pkg/metrics"
	"github.com/shift-health/pipeline/pkg/models"
	"github.com/shift-health/pipeline/pkg/warehouse"
)

// AggregatorService implements the read-only context-aggregator endpoint
// (spec.md §4.E): latest derived state + open instances + catalog copy +
// saved-set + onboarding-flow status, for a single caller.
//
// It is the one read path that writes: the onboarding auto-create step
// exists so the getting-started card can appear immediately after login,
// before any derived state has been produced.
type AggregatorService struct {
	states       *warehouse.StateRepository
	instances    *warehouse.InstanceRepository
	catalog      *warehouse.CatalogRepository
	interactions *warehouse.InteractionRepository

	onboardingRecency time.Duration
	notifier          DefectNotifier
	now               func() time.Time
}

func NewAggregatorService(
	states *warehouse.StateRepository,
	instances *warehouse.InstanceRepository,
	catalog *warehouse.CatalogRepository,
	interactions *warehouse.InteractionRepository,
	onboardingRecency time.Duration,
) *AggregatorService {
	return &AggregatorService{
		states: states, instances: instances, catalog: catalog, interactions: interactions,
		onboardingRecency: onboardingRecency, now: time.Now,
	}
}

// SetDefectNotifier wires an optional operator-alerting sink.
func (s *AggregatorService) SetDefectNotifier(n DefectNotifier) {
	s.notifier = n
}

// GetContext assembles the home-screen payload for userID (spec.md §4.E
// steps 1-6).
func (s *AggregatorService) GetContext(ctx context.Context, userID string) (*models.Context, error) {
	// Step 1: latest derived state (absent is not an error — fresh users
	// have none yet).
	state, err := s.states.Latest(ctx, userID)
	if err != nil {
		if !errors.Is(err, warehouse.ErrNotFound) {
			return nil, Transient(fmt.Errorf("load latest state estimate: %w", err))
		}
		state = nil
	}

	// Interaction history, folded by the onboarding check below.
	events, err := s.interactions.ForUser(ctx, userID)
	if err != nil {
		return nil, Transient(fmt.Errorf("load interaction history: %w", err))
	}

	// Step 3: onboarding auto-create.
	if err := s.ensureOnboardingCard(ctx, userID, events); err != nil {
		return nil, err
	}

	// Step 2: open instances for this user.
	created, err := s.instances.CreatedForUser(ctx, userID)
	if err != nil {
		return nil, Transient(fmt.Errorf("load open instances: %w", err))
	}

	// Step 4: join with catalog, skipping instances whose catalog entry
	// has since been removed; disabled entries are still joined.
	keys := make([]string, len(created))
	for i, in := range created {
		keys[i] = in.InterventionKey
	}
	catalogByKey, err := s.catalog.GetMany(ctx, keys)
	if err != nil {
		return nil, Transient(fmt.Errorf("load catalog entries: %w", err))
	}

	views := make([]models.InterventionView, 0, len(created))
	for _, in := range created {
		entry, ok := catalogByKey[in.InterventionKey]
		if !ok {
			continue
		}
		views = append(views, models.InterventionView{
			InstanceID:      in.InstanceID,
			TraceID:         in.TraceID,
			InterventionKey: in.InterventionKey,
			Metric:          in.Metric,
			Level:           in.Level,
			Surface:         in.Surface,
			Title:           entry.Title,
			Body:            entry.Body,
			Status:          in.Status,
			CreatedAt:       in.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	// Step 5: saved-set.
	saved := SavedInterventionKeys(events)
	if saved == nil {
		saved = []string{}
	}

	// Step 6.
	return &models.Context{
		StateEstimate:      state,
		Interventions:      views,
		SavedInterventions: saved,
	}, nil
}

// ensureOnboardingCard implements spec.md §4.E step 3: if the
// getting-started flow is not completed, or a flow_requested event for it
// arrived within the recency window, make sure a "created" instance of
// the current onboarding key exists for userID — creating one with a
// fresh trace id if not. Idempotent per (user, intervention_key) while
// the flow remains uncompleted.
func (s *AggregatorService) ensureOnboardingCard(ctx context.Context, userID string, events []models.AppInteraction) error {
	completed := FlowCompleted(events, models.GettingStartedFlowID)
	recentlyRequested := RecentFlowRequested(events, models.GettingStartedFlowID, s.now().Add(-s.onboardingRecency))

	if completed && !recentlyRequested {
		return nil
	}

	exists, err := s.instances.ExistsCreatedWithKey(ctx, userID, models.GettingStartedKey)
	if err != nil {
		return Transient(fmt.Errorf("check existing onboarding instance: %w", err))
	}
	if exists {
		return nil
	}

	traceID := models.NewTraceID()
	metrics.TraceabilityDefectsTotal.WithLabelValues("aggregator").Inc()
	notifyDefect(ctx, s.notifier, "aggregator", fmt.Sprintf("onboarding card auto-created for user %s with a fresh trace id", userID))

	now := s.now().UTC()
	instance := &models.InterventionInstance{
		InstanceID:      models.NewID(),
		UserID:          userID,
		TraceID:         traceID,
		Metric:          "onboarding",
		Level:           "n/a",
		Surface:         "home",
		InterventionKey: models.GettingStartedKey,
		CreatedAt:       now,
		ScheduledAt:     now,
		Status:          models.StatusCreated,
	}
	if err := s.instances.Create(ctx, instance); err != nil {
		return Transient(fmt.Errorf("create onboarding instance: %w", err))
	}
	return nil
}
