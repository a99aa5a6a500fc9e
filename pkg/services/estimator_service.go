package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shift-health/pipeline/pkg/bus"
	"github.com/shift-health/pipeline/pkg/metrics"
	"github.com/shift-health/pipeline/pkg/models"
	"github.com/shift-health/pipeline/pkg/warehouse"
)

// EstimatorService implements the state-estimator worker (spec.md §4.C).
// It is triggered by watch_events messages but processes whatever is
// currently unprocessed — a batch transform, not a per-message compute.
type EstimatorService struct {
	transform Transform
	states    *warehouse.StateRepository
	bus       *bus.Bus
	lookback  time.Duration
	now       func() time.Time
}

func NewEstimatorService(transform Transform, states *warehouse.StateRepository, b *bus.Bus, lookback time.Duration) *EstimatorService {
	return &EstimatorService{transform: transform, states: states, bus: b, lookback: lookback, now: time.Now}
}

// Tick runs one invocation of the estimator: (1) optionally recreate
// views, (2) run the transform, (3) republish one message per user whose
// state was refreshed within the look-back window (spec.md §4.C).
//
// Idempotence: re-running the transform for the same raw data produces
// at most one new row per (user, tick) — enforced by the transform
// itself (spec.md §4.C, implementation freedom). Publish failures are
// logged and swallowed; the next tick will re-emit because the
// look-back window still contains the row.
func (s *EstimatorService) Tick(ctx context.Context) error {
	start := s.now()
	defer func() { metrics.EstimatorTickDuration.Observe(time.Since(start).Seconds()) }()

	if err := s.transform.EnsureViews(ctx); err != nil {
		return Transient(fmt.Errorf("ensure views: %w", err))
	}
	if err := s.transform.Run(ctx); err != nil {
		return Transient(fmt.Errorf("run transform: %w", err))
	}

	since := s.now().Add(-s.lookback)
	refreshed, err := s.states.LatestSince(ctx, since)
	if err != nil {
		return Transient(fmt.Errorf("query recent state estimates: %w", err))
	}

	for _, e := range refreshed {
		msg := models.StateEstimateMessage{UserID: e.UserID, Timestamp: e.Timestamp}
		if err := bus.PublishStateEstimate(ctx, s.bus, msg); err != nil {
			slog.ErrorContext(ctx, "failed to publish state_estimates message", "user_id", e.UserID, "error", err)
		}
	}

	return nil
}
