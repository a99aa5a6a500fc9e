package models

import (
	"fmt"
	"time"
)

// DedupKey formats the dedup-lock key for a (user, batch-fetch-time) pair
// (spec.md §3). Millisecond-precision Unix time keeps the key stable
// across client retries that resend the identical fetchedAt timestamp.
func DedupKey(userID string, fetchedAt time.Time) string {
	return fmt.Sprintf("dedup:%s:%d", userID, fetchedAt.UnixMilli())
}

// DedupRecord is the metadata stored behind a dedup key, returned to a
// caller that discovers the key was already claimed so it can answer the
// duplicate-batch request with the original sample count.
type DedupRecord struct {
	TraceID string `json:"trace_id"`
	Samples int    `json:"samples"`
}
