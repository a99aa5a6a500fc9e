package models

import "time"

// InstanceStatus is the lifecycle status of an intervention instance.
// Transitions follow created -> {sent, accepted, dismissed, failed} only
// (spec.md §3, §8).
type InstanceStatus string

const (
	StatusCreated   InstanceStatus = "created"
	StatusSent      InstanceStatus = "sent"
	StatusAccepted  InstanceStatus = "accepted"
	StatusDismissed InstanceStatus = "dismissed"
	StatusFailed    InstanceStatus = "failed"
)

// ValidTransition reports whether moving from the instance's initial
// "created" status to next is allowed. Every status-change row is a
// transition away from created; there is no created -> created no-op and
// no chaining (e.g. sent -> accepted) in this design — each change row
// stands alone and "current status" is simply the latest one (§3).
func ValidTransition(next InstanceStatus) bool {
	switch next {
	case StatusSent, StatusAccepted, StatusDismissed, StatusFailed:
		return true
	default:
		return false
	}
}

// InterventionInstance is one selection decision (spec.md §3). Rows are
// append-only; Status here is the initial-value hint only (§9) — current
// status is always derived from the status-change log by the warehouse
// layer, never read off this field after creation.
type InterventionInstance struct {
	InstanceID      string     `db:"instance_id"`
	UserID          string     `db:"user_id"`
	TraceID         string     `db:"trace_id"`
	Metric          string     `db:"metric"`
	Level           string     `db:"level"`
	Surface         string     `db:"surface"`
	InterventionKey string     `db:"intervention_key"`
	CreatedAt       time.Time  `db:"created_at"`
	ScheduledAt     time.Time  `db:"scheduled_at"`
	SentAt          *time.Time `db:"sent_at"`
	Status          InstanceStatus `db:"status"`
}

// InterventionStatusChange is one append-only status transition row
// (spec.md §3). "Current status" of an instance is the status of the row
// with the greatest ChangedAt for that instance, falling back to the
// instance's initial created status if no change row exists.
type InterventionStatusChange struct {
	ChangeID   string         `db:"change_id"`
	InstanceID string         `db:"instance_id"`
	TraceID    string         `db:"trace_id"`
	UserID     string         `db:"user_id"`
	NewStatus  InstanceStatus `db:"new_status"`
	SentAt     *time.Time     `db:"sent_at"`
	ChangedAt  time.Time      `db:"changed_at"`
}

// InstanceWithCatalog joins an instance row to its catalog entry for the
// aggregator's response (spec.md §4.E step 4).
type InstanceWithCatalog struct {
	InterventionInstance
	Title string `db:"title"`
	Body  string `db:"body"`
}
