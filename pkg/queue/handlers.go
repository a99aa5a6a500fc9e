package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shift-health/pipeline/pkg/bus"
	"github.com/shift-health/pipeline/pkg/models"
)

// EstimatorHandler adapts a Tick-style estimator service to bus.Handler.
// The watch_events payload itself carries no information the tick needs —
// its arrival is only a trigger to process whatever is currently
// unprocessed (spec.md §4.C).
type EstimatorHandler func(ctx context.Context) error

func NewEstimatorBusHandler(tick EstimatorHandler) bus.Handler {
	return func(ctx context.Context, _ []byte) error {
		return tick(ctx)
	}
}

// SelectorHandler adapts the selector service's per-message entry point to
// bus.Handler, decoding the state_estimates payload first.
type SelectorHandler func(ctx context.Context, msg models.StateEstimateMessage) error

func NewSelectorBusHandler(handle SelectorHandler) bus.Handler {
	return func(ctx context.Context, payload []byte) error {
		var msg models.StateEstimateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return fmt.Errorf("decode state_estimates message: %w", err)
		}
		return handle(ctx, msg)
	}
}
