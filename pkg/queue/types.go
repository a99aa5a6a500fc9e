// Package queue adapts the worker-pool shape used for the original
// database-polling session queue to bus-triggered processing: a pool of
// goroutines draining a bounded channel fed by one message-bus
// subscription, reporting the same kind of per-worker health the pool
// previously exposed over the queue-depth/active-session counters.
package queue

import "time"

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string       `json:"id"`
	Status            WorkerStatus `json:"status"`
	MessagesProcessed int          `json:"messages_processed"`
	MessagesFailed    int          `json:"messages_failed"`
	LastActivity      time.Time    `json:"last_activity"`
}

// PoolHealth contains health information for an entire worker pool.
type PoolHealth struct {
	Name          string         `json:"name"`
	Topic         string         `json:"topic"`
	TotalWorkers  int            `json:"total_workers"`
	ActiveWorkers int            `json:"active_workers"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	Dropped       int            `json:"dropped"`
	WorkerStats   []WorkerHealth `json:"worker_stats"`
}
