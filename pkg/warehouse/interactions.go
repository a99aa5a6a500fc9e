package warehouse

import (
	"context"
	"fmt"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// InteractionRepository appends to and reads from the app-interaction log
// (spec.md §3 "App interaction"). Interpretation of the dynamic payloads
// (onboarding-flow state machine, saved-set derivation) is left to the
// service layer, which treats the ordered event stream as a tagged sum
// (spec.md §9) rather than pushing that logic into SQL.
type InteractionRepository struct {
	db *database.Client
}

func NewInteractionRepository(db *database.Client) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) Append(ctx context.Context, ev *models.AppInteraction) error {
	const q = `
		INSERT INTO app_interactions (interaction_id, trace_id, user_id, instance_id, event_type, ts, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, q, ev.InteractionID, ev.TraceID, ev.UserID, ev.InstanceID, ev.EventType, ev.Timestamp, ev.Payload)
	if err != nil {
		return fmt.Errorf("append app interaction: %w", err)
	}
	return nil
}

// ForUser returns every interaction event for userID in timestamp order —
// the full stream the onboarding and saved-set state machines fold over.
func (r *InteractionRepository) ForUser(ctx context.Context, userID string) ([]models.AppInteraction, error) {
	const q = `
		SELECT interaction_id, trace_id, user_id, instance_id, event_type, ts, payload
		FROM app_interactions
		WHERE user_id = $1
		ORDER BY ts ASC`

	var rows []models.AppInteraction
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("select user interactions: %w", err)
	}
	return rows, nil
}

// ForUserByTypes is the same as ForUser but filtered to a set of event
// types. The service layer does not call it: the onboarding and saved-set
// checks fold over the full ForUser stream.
func (r *InteractionRepository) ForUserByTypes(ctx context.Context, userID string, types []models.InteractionEventType) ([]models.AppInteraction, error) {
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = string(t)
	}

	query, args, err := sqlxIn(
		`SELECT interaction_id, trace_id, user_id, instance_id, event_type, ts, payload
		 FROM app_interactions
		 WHERE user_id = ? AND event_type IN (?)
		 ORDER BY ts ASC`,
		userID, strs,
	)
	if err != nil {
		return nil, fmt.Errorf("build interactions IN query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []models.AppInteraction
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select typed user interactions: %w", err)
	}
	return rows, nil
}
