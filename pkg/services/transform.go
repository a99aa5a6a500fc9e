package services

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/shift-health/pipeline/pkg/database"
)

//go:embed sql/transform.sql
var transformScript string

// Transform is the state estimator's per-metric math, treated as an
// opaque collaborator (spec.md §1). EstimatorService calls it without
// knowing its internals; SQLTransform is the only implementation, used by
// both cmd/shift and the e2e harness.
type Transform interface {
	// EnsureViews (re)creates any warehouse views the transform depends
	// on. A no-op for the embedded-static-script implementation (spec.md
	// §4.C step 1 says "optionally"); kept as an explicit extension
	// point for a future templated-per-tenant transform.
	EnsureViews(ctx context.Context) error

	// Run executes the transform once: read processed=false raw
	// batches, write one new derived-state row per affected user, mark
	// the batches processed.
	Run(ctx context.Context) error
}

// SQLTransform runs the embedded transform.sql script against the
// warehouse directly, statement by statement inside one transaction —
// the Go equivalent of the original pipeline's
// repository.execute_script(transform_path) (original_source/pipeline/
// state_estimator/src/pipeline.py).
type SQLTransform struct {
	db *database.Client
}

func NewSQLTransform(db *database.Client) *SQLTransform {
	return &SQLTransform{db: db}
}

func (t *SQLTransform) EnsureViews(ctx context.Context) error {
	return nil
}

func (t *SQLTransform) Run(ctx context.Context) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transform tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(transformScript) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute transform statement: %w", err)
		}
	}

	return tx.Commit()
}

// splitStatements splits a static SQL script into individual statements
// on top-level semicolons. Sufficient for our own authored scripts,
// which contain no semicolons inside string or JSON literals.
func splitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";\n") {
		if s := strings.TrimSpace(raw); s != "" {
			out = append(out, s)
		}
	}
	return out
}
