package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// CatalogRepository reads the operator-maintained intervention catalog
// (spec.md §3 "Intervention catalog"). The pipeline never writes to it.
type CatalogRepository struct {
	db *database.Client
}

func NewCatalogRepository(db *database.Client) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// CandidatesForBucket returns the enabled catalog rows for metric="stress"
// at the given bucket level (spec.md §4.D step 3).
func (r *CatalogRepository) CandidatesForBucket(ctx context.Context, bucket models.StressBucket) ([]models.CatalogEntry, error) {
	const q = `
		SELECT intervention_key, metric, level, surface, title, body, enabled, target_level, nudge_type, persona
		FROM intervention_catalog
		WHERE metric = 'stress' AND level = $1 AND enabled = true
		ORDER BY intervention_key`

	var rows []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &rows, q, string(bucket)); err != nil {
		return nil, fmt.Errorf("select catalog candidates: %w", err)
	}
	return rows, nil
}

// Get fetches a single catalog entry by key, or ErrNotFound.
func (r *CatalogRepository) Get(ctx context.Context, key string) (*models.CatalogEntry, error) {
	const q = `
		SELECT intervention_key, metric, level, surface, title, body, enabled, target_level, nudge_type, persona
		FROM intervention_catalog
		WHERE intervention_key = $1`

	var e models.CatalogEntry
	if err := r.db.GetContext(ctx, &e, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select catalog entry: %w", err)
	}
	return &e, nil
}

// GetMany fetches catalog entries for a set of keys, returned as a map;
// keys absent from the catalog are simply missing from the result (the
// aggregator treats that as "skip defensively", spec.md §4.E step 4).
func (r *CatalogRepository) GetMany(ctx context.Context, keys []string) (map[string]models.CatalogEntry, error) {
	out := make(map[string]models.CatalogEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query, args, err := sqlxIn(
		`SELECT intervention_key, metric, level, surface, title, body, enabled, target_level, nudge_type, persona
		 FROM intervention_catalog WHERE intervention_key IN (?)`,
		keys,
	)
	if err != nil {
		return nil, fmt.Errorf("build catalog IN query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []models.CatalogEntry
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select catalog entries: %w", err)
	}
	for _, row := range rows {
		out[row.InterventionKey] = row
	}
	return out, nil
}
