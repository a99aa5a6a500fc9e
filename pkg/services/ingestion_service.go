package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shift-health/pipeline/pkg/bus"
	"github.com/shift-health/pipeline/pkg/dedup"
	"github.com/shift-health/pipeline/pkg/metrics"
	"github.com/shift-health/pipeline/pkg/models"
	"github.com/shift-health/pipeline/pkg/warehouse"
)

// IngestionService implements the ingestion gateway's submit-batch
// operation (spec.md §4.B).
type IngestionService struct {
	dedup    *dedup.Store
	batches  *warehouse.BatchRepository
	bus      *bus.Bus
	notifier DefectNotifier
	now      func() time.Time
}

func NewIngestionService(dedupStore *dedup.Store, batches *warehouse.BatchRepository, b *bus.Bus) *IngestionService {
	return &IngestionService{dedup: dedupStore, batches: batches, bus: b, now: time.Now}
}

// SetDefectNotifier wires an optional operator-alerting sink. Safe to
// leave unset — notifyDefect no-ops against a nil DefectNotifier.
func (s *IngestionService) SetDefectNotifier(n DefectNotifier) {
	s.notifier = n
}

// SubmitResult is returned to the HTTP layer for POST /watch_events
// (spec.md §6): {message, samples_received, user_id}.
type SubmitResult struct {
	Duplicate       bool
	SamplesReceived int
}

// SubmitBatch runs the full submit-batch algorithm (spec.md §4.B):
// mint/inherit a trace id, claim the dedup key, persist the raw batch,
// and publish the ingestion-trigger message. Contract: the dedup claim
// is observable before the publish; a publish failure must never roll
// back the claim or the persisted row — at-least-once downstream
// delivery is acceptable, duplicate ingestion is not.
func (s *IngestionService) SubmitBatch(ctx context.Context, userID string, batch models.HealthDataBatch) (*SubmitResult, error) {
	traceID := batch.TraceID
	if traceID == "" {
		traceID = models.NewTraceID()
		metrics.TraceabilityDefectsTotal.WithLabelValues("ingestion").Inc()
		slog.WarnContext(ctx, "traceability defect: batch missing trace id, minted one",
			"user_id", userID, "fetched_at", batch.FetchedAt, "minted_trace_id", traceID)
		notifyDefect(ctx, s.notifier, "ingestion", fmt.Sprintf("batch for user %s missing trace id", userID))
	}

	totalSamples := batch.TotalSamples()

	claim, err := s.dedup.Claim(ctx, userID, batch.FetchedAt, models.DedupRecord{TraceID: traceID, Samples: totalSamples})
	if errors.Is(err, dedup.ErrAlreadyClaimed) {
		metrics.IngestionDuplicatesTotal.Inc()
		slog.InfoContext(ctx, "duplicate batch rejected", "user_id", userID, "fetched_at", batch.FetchedAt)
		return &SubmitResult{Duplicate: true, SamplesReceived: claim.Samples}, nil
	}
	if err != nil {
		return nil, Transient(fmt.Errorf("claim dedup key: %w", err))
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, NewValidationError("batch", "failed to encode payload")
	}

	row := &models.EventBatch{
		UserID:    userID,
		FetchedAt: batch.FetchedAt,
		TraceID:   traceID,
		Payload:   payload,
		Samples:   totalSamples,
		CreatedAt: s.now().UTC(),
	}
	if err := s.batches.Insert(ctx, row); err != nil {
		if errors.Is(err, warehouse.ErrDuplicateBatch) {
			metrics.IngestionDuplicatesTotal.Inc()
			slog.InfoContext(ctx, "duplicate batch rejected by storage layer", "user_id", userID, "fetched_at", batch.FetchedAt)
			return &SubmitResult{Duplicate: true, SamplesReceived: totalSamples}, nil
		}
		return nil, Transient(fmt.Errorf("persist batch: %w", err))
	}
	metrics.IngestionBatchesTotal.Inc()

	msg := models.WatchEventsMessage{
		UserID:       userID,
		FetchedAt:    batch.FetchedAt,
		TraceID:      traceID,
		TotalSamples: totalSamples,
	}
	if err := bus.PublishWatchEvent(ctx, s.bus, msg); err != nil {
		// Publish failure must not roll back the claim or the persisted
		// row (spec.md §4.B contract) — log and return success; the
		// batch is durably stored and can be republished by an operator
		// re-trigger if needed.
		slog.ErrorContext(ctx, "failed to publish watch_events message", "user_id", userID, "trace_id", traceID, "error", err)
	}

	return &SubmitResult{Duplicate: false, SamplesReceived: totalSamples}, nil
}
