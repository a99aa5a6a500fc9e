package models

import "time"

// Sample is one typed measurement inside a HealthDataBatch array.
type Sample struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Source    string    `json:"source,omitempty"`
}

// HealthDataBatch is the raw payload shape submitted by the watch/phone
// client to POST /watch_events. The named arrays are a fixed, known set;
// unrecognized top-level keys are not preserved (the client only ever
// sends this fixed shape — unlike app interactions, there is no
// forward-compatibility requirement here per spec.md §3).
type HealthDataBatch struct {
	FetchedAt time.Time `json:"fetchedAt"`
	TraceID   string    `json:"trace_id"`

	HeartRate []Sample `json:"heartRate,omitempty"`
	HRV       []Sample `json:"hrv,omitempty"`
	Steps     []Sample `json:"steps,omitempty"`
	Sleep     []Sample `json:"sleep,omitempty"`
	Workouts  []Sample `json:"workouts,omitempty"`
}

// TotalSamples counts the samples across all five named arrays
// (HeartRate, HRV, Steps, Sleep, Workouts).
func (b HealthDataBatch) TotalSamples() int {
	return len(b.HeartRate) + len(b.HRV) + len(b.Steps) + len(b.Sleep) + len(b.Workouts)
}

// EventBatch is the persisted raw-batch row (spec.md §3 "Event batch
// (raw)"). Keyed by (UserID, FetchedAt); append-only.
type EventBatch struct {
	UserID    string    `db:"user_id"`
	FetchedAt time.Time `db:"fetched_at"`
	TraceID   string    `db:"trace_id"`
	Payload   []byte    `db:"payload"` // opaque JSON-encoded HealthDataBatch
	Samples   int       `db:"samples"`
	CreatedAt time.Time `db:"created_at"`
}

// WatchEventsMessage is published to the watch_events bus topic after a
// batch is durably persisted (spec.md §6).
type WatchEventsMessage struct {
	UserID       string    `json:"user_id"`
	FetchedAt    time.Time `json:"fetched_at"`
	TraceID      string    `json:"trace_id"`
	TotalSamples int       `json:"total_samples"`
}
