package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shift-health/pipeline/pkg/database"
	"github.com/shift-health/pipeline/pkg/models"
)

// BatchRepository persists raw event batches (spec.md §3 "Event batch
// (raw)") and reads back the unprocessed set the state-estimator transform
// consumes.
type BatchRepository struct {
	db *database.Client
}

func NewBatchRepository(db *database.Client) *BatchRepository {
	return &BatchRepository{db: db}
}

// Insert appends a raw-batch row. The primary key (user_id, fetched_at)
// enforces the dedup invariant at the storage layer as a second line of
// defense behind the dedup-lock claim (spec.md §3, §5): a racing duplicate
// insert returns a unique-violation, which the caller treats the same as a
// dedup-lock hit.
func (r *BatchRepository) Insert(ctx context.Context, b *models.EventBatch) error {
	const q = `
		INSERT INTO event_batches (user_id, fetched_at, trace_id, payload, samples, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, q, b.UserID, b.FetchedAt, b.TraceID, b.Payload, b.Samples, b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateBatch
		}
		return fmt.Errorf("insert event batch: %w", err)
	}
	return nil
}

// ErrDuplicateBatch signals a (user_id, fetched_at) collision at the
// storage layer — the dedup-lock path should normally catch this first.
var ErrDuplicateBatch = errors.New("warehouse: duplicate event batch")

// Unprocessed returns every raw-batch row not yet consumed by the
// state-estimator transform.
func (r *BatchRepository) Unprocessed(ctx context.Context) ([]models.EventBatch, error) {
	const q = `
		SELECT user_id, fetched_at, trace_id, payload, samples, created_at
		FROM event_batches
		WHERE NOT processed
		ORDER BY fetched_at`

	var rows []models.EventBatch
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("select unprocessed batches: %w", err)
	}
	return rows, nil
}

// MarkProcessed flags the given (user_id, fetched_at) pairs as consumed.
func (r *BatchRepository) MarkProcessed(ctx context.Context, keys []models.EventBatch) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `UPDATE event_batches SET processed = true WHERE user_id = $1 AND fetched_at = $2`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, q, k.UserID, k.FetchedAt); err != nil {
			return fmt.Errorf("mark batch processed: %w", err)
		}
	}
	return tx.Commit()
}

// Exists reports whether a raw-batch row already exists for (userID,
// fetchedAt). The ingestion path does not call it; it relies on the dedup
// lock and on Insert's ErrDuplicateBatch.
func (r *BatchRepository) Exists(ctx context.Context, userID string, fetchedAt time.Time) (bool, error) {
	const q = `SELECT 1 FROM event_batches WHERE user_id = $1 AND fetched_at = $2`
	var one int
	err := r.db.GetContext(ctx, &one, q, userID, fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check batch existence: %w", err)
	}
	return true, nil
}
