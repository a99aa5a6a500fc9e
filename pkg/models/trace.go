// Package models holds the plain data types shared across the pipeline:
// warehouse rows, bus payloads, and request/response shapes.
package models

import "github.com/google/uuid"

// NewTraceID mints a fresh end-to-end trace identifier.
//
// Most call sites are recovering from a TraceabilityDefect (spec.md §7): a
// trace id was expected on an inbound batch, interaction or upstream row
// and was absent. Those callers log the defect and increment the SLO
// counter; InteractionService.Reset also mints one for each reset event,
// which is not a defect and is not counted. This helper only produces
// the id.
func NewTraceID() string {
	return uuid.NewString()
}

// NewID mints a fresh opaque identifier for rows whose primary key is not
// derived from caller input (instance ids, change ids, interaction ids).
func NewID() string {
	return uuid.NewString()
}
