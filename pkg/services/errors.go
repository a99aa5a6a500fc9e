// Package services implements the four component algorithms (spec.md
// §4.B-E): ingestion, state estimation, intervention selection, and
// context aggregation, plus the error taxonomy they share.
package services

import (
	"context"
	"errors"
	"fmt"
)

// DefectNotifier is notified whenever a component mints a trace id
// because an expected one was missing (spec.md §7's TraceabilityDefect).
// The metric increment happens unconditionally; this is the optional,
// nil-safe operator-alerting path layered on top (SPEC_FULL.md
// "Operator alerting").
type DefectNotifier interface {
	NotifyTraceabilityDefect(ctx context.Context, component, detail string)
}

func notifyDefect(ctx context.Context, n DefectNotifier, component, detail string) {
	if n == nil {
		return
	}
	n.NotifyTraceabilityDefect(ctx, component, detail)
}

// Error kinds (spec.md §7 "Error kinds (taxonomy, not types)"). These are
// sentinels rather than a typed hierarchy, matching the teacher's own
// flat sentinel-plus-ValidationError shape.
var (
	// ErrUnauthenticated covers a missing/invalid bearer token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden covers an identity mismatch (authenticated user does
	// not match the resource's owning user).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound covers an unknown instance or user.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate names the duplicate-batch error kind. SubmitBatch does
	// not return it: a duplicate comes back as SubmitResult.Duplicate and
	// reaches the client as success with a "duplicate" status marker.
	// respondError maps ErrDuplicate itself to 409.
	ErrDuplicate = errors.New("duplicate batch")

	// ErrTransient covers warehouse/bus/push-provider I/O failure. HTTP
	// handlers map it to 500. A bus worker logs it and drops the message;
	// Redis Pub/Sub has no redelivery, so the message is not retried.
	ErrTransient = errors.New("transient failure")
)

// ValidationError wraps a single field-specific validation failure
// (spec.md §7 "ValidationError: malformed input, unknown enum value").
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Transient wraps err to mark it retryable, preserving the original for
// errors.Is/As and logging.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
