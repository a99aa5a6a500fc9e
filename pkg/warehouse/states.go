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

// StateRepository persists derived-state estimates (spec.md §3 "Derived
// state estimate") and serves the two read paths that consume them: the
// estimator's look-back republish query and the selector/aggregator's
// latest-per-user fetch.
type StateRepository struct {
	db *database.Client
}

func NewStateRepository(db *database.Client) *StateRepository {
	return &StateRepository{db: db}
}

// Insert appends one derived-state row. trace_id must never be empty —
// callers are responsible for minting one and logging a traceability
// defect before calling Insert (spec.md §4.C, §9).
func (r *StateRepository) Insert(ctx context.Context, e *models.DerivedStateEstimate) error {
	const q = `
		INSERT INTO derived_state_estimates (user_id, ts, trace_id, recovery, readiness, stress, fatigue)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, q, e.UserID, e.Timestamp, e.TraceID, e.Recovery, e.Readiness, e.Stress, e.Fatigue)
	if err != nil {
		return fmt.Errorf("insert state estimate: %w", err)
	}
	return nil
}

// Latest returns the most recent state-estimate row for userID, or
// ErrNotFound if the user has none yet.
func (r *StateRepository) Latest(ctx context.Context, userID string) (*models.DerivedStateEstimate, error) {
	const q = `
		SELECT user_id, ts, trace_id, recovery, readiness, stress, fatigue
		FROM derived_state_estimates
		WHERE user_id = $1
		ORDER BY ts DESC
		LIMIT 1`

	var e models.DerivedStateEstimate
	if err := r.db.GetContext(ctx, &e, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select latest state estimate: %w", err)
	}
	return &e, nil
}

// LatestSince returns the single most-recent row per user among rows
// created within the look-back window (spec.md §4.C step 3), used by the
// estimator to decide which users to republish a state-estimates message
// for. Dedup-by-(user, tick) is implicit: DISTINCT ON (user_id) keeps only
// the freshest row per user even if the transform produced several.
func (r *StateRepository) LatestSince(ctx context.Context, since time.Time) ([]models.DerivedStateEstimate, error) {
	const q = `
		SELECT DISTINCT ON (user_id) user_id, ts, trace_id, recovery, readiness, stress, fatigue
		FROM derived_state_estimates
		WHERE created_at >= $1
		ORDER BY user_id, ts DESC`

	var rows []models.DerivedStateEstimate
	if err := r.db.SelectContext(ctx, &rows, q, since); err != nil {
		return nil, fmt.Errorf("select recent state estimates: %w", err)
	}
	return rows, nil
}
