package warehouse

import (
	"context"
	"fmt"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// StatusChangeRepository appends to the instance status-change log
// (spec.md §3 "Intervention status change") — the sole source of truth for
// an instance's current status.
type StatusChangeRepository struct {
	db *database.Client
}

func NewStatusChangeRepository(db *database.Client) *StatusChangeRepository {
	return &StatusChangeRepository{db: db}
}

func (r *StatusChangeRepository) Append(ctx context.Context, c *models.InterventionStatusChange) error {
	const q = `
		INSERT INTO intervention_status_changes (change_id, instance_id, trace_id, user_id, new_status, sent_at, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, q, c.ChangeID, c.InstanceID, c.TraceID, c.UserID, c.NewStatus, c.SentAt, c.ChangedAt)
	if err != nil {
		return fmt.Errorf("append status change: %w", err)
	}
	return nil
}
