package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// InstanceRepository persists intervention instances (spec.md §3
// "Intervention instance") and derives current status from the append-only
// status-change log rather than trusting the instance row's own status
// column, per the design notes in spec.md §9.
type InstanceRepository struct {
	db *database.Client
}

func NewInstanceRepository(db *database.Client) *InstanceRepository {
	return &InstanceRepository{db: db}
}

// Create appends a new instance row with status "created" (spec.md §4.D
// step 9).
func (r *InstanceRepository) Create(ctx context.Context, in *models.InterventionInstance) error {
	const q = `
		INSERT INTO intervention_instances
			(instance_id, user_id, trace_id, metric, level, surface, intervention_key, created_at, scheduled_at, sent_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, q,
		in.InstanceID, in.UserID, in.TraceID, in.Metric, in.Level, in.Surface, in.InterventionKey,
		in.CreatedAt, in.ScheduledAt, in.SentAt, in.Status,
	)
	if err != nil {
		return fmt.Errorf("insert intervention instance: %w", err)
	}
	return nil
}

// Get fetches a single instance row by id, or ErrNotFound.
func (r *InstanceRepository) Get(ctx context.Context, instanceID string) (*models.InterventionInstance, error) {
	const q = `
		SELECT instance_id, user_id, trace_id, metric, level, surface, intervention_key, created_at, scheduled_at, sent_at, status
		FROM intervention_instances WHERE instance_id = $1`

	var in models.InterventionInstance
	if err := r.db.GetContext(ctx, &in, q, instanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select intervention instance: %w", err)
	}
	return &in, nil
}

// CountCreatedSince counts instances created for userID at or after since —
// the rate-limit check of spec.md §4.D step 8 (30-minute window, max 3).
func (r *InstanceRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const q = `SELECT count(*) FROM intervention_instances WHERE user_id = $1 AND created_at >= $2`

	var n int
	if err := r.db.GetContext(ctx, &n, q, userID, since); err != nil {
		return 0, fmt.Errorf("count recent instances: %w", err)
	}
	return n, nil
}

// ExistsCreatedWithKey reports whether an instance with the given
// intervention_key and *current* status "created" already exists for
// userID — the onboarding dedup rule of spec.md §4.D step 7 and the
// aggregator's idempotent auto-create of spec.md §4.E step 3. Current
// status is derived the same way CurrentStatus is, inline, to avoid an
// N+1 round trip per candidate.
func (r *InstanceRepository) ExistsCreatedWithKey(ctx context.Context, userID, interventionKey string) (bool, error) {
	const q = `
		SELECT 1
		FROM intervention_instances i
		WHERE i.user_id = $1 AND i.intervention_key = $2
		  AND coalesce(
		        (SELECT s.new_status FROM intervention_status_changes s
		         WHERE s.instance_id = i.instance_id
		         ORDER BY s.changed_at DESC LIMIT 1),
		        i.status
		      ) = 'created'
		LIMIT 1`

	var one int
	err := r.db.GetContext(ctx, &one, q, userID, interventionKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check existing created instance: %w", err)
	}
	return true, nil
}

// CreatedForUser returns every instance for userID whose *current* status
// (derived from the status-change log, falling back to the instance row's
// initial status) is "created" — the aggregator's open-instances query
// (spec.md §4.E step 2), joined with catalog titles/bodies in the models
// helper the service layer assembles.
func (r *InstanceRepository) CreatedForUser(ctx context.Context, userID string) ([]models.InterventionInstance, error) {
	const q = `
		SELECT i.instance_id, i.user_id, i.trace_id, i.metric, i.level, i.surface, i.intervention_key,
		       i.created_at, i.scheduled_at, i.sent_at,
		       coalesce(
		         (SELECT s.new_status FROM intervention_status_changes s
		          WHERE s.instance_id = i.instance_id
		          ORDER BY s.changed_at DESC LIMIT 1),
		         i.status
		       ) AS status
		FROM intervention_instances i
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC`

	var rows []models.InterventionInstance
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("select user instances: %w", err)
	}

	var created []models.InterventionInstance
	for _, row := range rows {
		if row.Status == models.StatusCreated {
			created = append(created, row)
		}
	}
	return created, nil
}

// CurrentStatus derives the current status of a single instance from the
// status-change log, falling back to the instance's initial status
// (spec.md §3 "Intervention status change").
func (r *InstanceRepository) CurrentStatus(ctx context.Context, instanceID string) (models.InstanceStatus, error) {
	const q = `
		SELECT coalesce(
		  (SELECT s.new_status FROM intervention_status_changes s
		   WHERE s.instance_id = i.instance_id
		   ORDER BY s.changed_at DESC LIMIT 1),
		  i.status
		)
		FROM intervention_instances i WHERE i.instance_id = $1`

	var status models.InstanceStatus
	if err := r.db.GetContext(ctx, &status, q, instanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("derive current status: %w", err)
	}
	return status, nil
}
