package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shift-health/pipeline/pkg/models"
)

// PublishWatchEvent publishes a trigger message to the watch_events topic
// (spec.md §4.B, §6) after a batch has been durably persisted.
func PublishWatchEvent(ctx context.Context, b *Bus, msg models.WatchEventsMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal watch_events message: %w", err)
	}
	return b.Publish(ctx, TopicWatchEvents, payload)
}

// PublishStateEstimate publishes a refresh notice to the state_estimates
// topic (spec.md §4.C step 3, §6) once per user whose derived state was
// refreshed in a tick.
func PublishStateEstimate(ctx context.Context, b *Bus, msg models.StateEstimateMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal state_estimates message: %w", err)
	}
	return b.Publish(ctx, TopicStateEstimates, payload)
}
