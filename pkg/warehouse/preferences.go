package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// PreferenceRepository reads the surface_preferences view (spec.md §3
// "Surface preferences"). Its computation over the interaction log is a
// warehouse view out of scope for this pipeline (spec.md §9); the
// pipeline only ever reads it.
type PreferenceRepository struct {
	db *database.Client
}

func NewPreferenceRepository(db *database.Client) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ForUser returns every surface-preference row for userID, keyed by
// surface, for the selector's per-candidate scoring pass (spec.md §4.D
// step 4).
func (r *PreferenceRepository) ForUser(ctx context.Context, userID string) (map[string]models.SurfacePreference, error) {
	const q = `
		SELECT user_id, surface, shown_count, engagement_rate, ignore_rate, annoyance_rate, preference_score
		FROM surface_preferences WHERE user_id = $1`

	var rows []models.SurfacePreference
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, fmt.Errorf("select surface preferences: %w", err)
	}

	out := make(map[string]models.SurfacePreference, len(rows))
	for _, row := range rows {
		out[row.Surface] = row
	}
	return out, nil
}

// Get returns the preference row for (userID, surface), or the zero value
// (shown_count 0, all rates/score 0) if none exists — spec.md §4.D step 5
// treats an absent row the same as an unshown surface.
func (r *PreferenceRepository) Get(ctx context.Context, userID, surface string) (models.SurfacePreference, error) {
	const q = `
		SELECT user_id, surface, shown_count, engagement_rate, ignore_rate, annoyance_rate, preference_score
		FROM surface_preferences WHERE user_id = $1 AND surface = $2`

	var row models.SurfacePreference
	err := r.db.GetContext(ctx, &row, q, userID, surface)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SurfacePreference{UserID: userID, Surface: surface}, nil
		}
		return models.SurfacePreference{}, fmt.Errorf("select surface preference: %w", err)
	}
	return row, nil
}
