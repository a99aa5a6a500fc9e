package queue

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/shift-health/pipeline/pkg/bus"
)

// WorkerPool subscribes to one bus topic and fans its messages out across
// a fixed number of Worker goroutines, giving the estimator and selector
// the same bounded-concurrency shape the original polling pool gave
// session processing.
type WorkerPool struct {
	name    string
	topic   string
	bus     *bus.Bus
	handler bus.Handler

	queue   chan []byte
	workers []*Worker

	mu      sync.Mutex
	dropped int
	started bool
}

func NewWorkerPool(name, topic string, b *bus.Bus, handler bus.Handler, workerCount, queueDepth int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &WorkerPool{
		name:    name,
		topic:   topic,
		bus:     b,
		handler: handler,
		queue:   make(chan []byte, queueDepth),
		workers: make([]*Worker, 0, workerCount),
	}
}

// Start subscribes to the pool's topic and spawns its worker goroutines.
// Safe to call once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("worker pool already started, ignoring duplicate Start call", "pool", p.name)
		return
	}
	p.started = true

	capacity := cap(p.workers)
	for i := 0; i < capacity; i++ {
		worker := NewWorker(workerID(p.name, i), p.queue, p.handler)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.bus.Subscribe(p.topic, p.enqueue)
	slog.Info("worker pool started", "pool", p.name, "topic", p.topic, "workers", capacity)
}

// Stop drains worker goroutines. It does not unsubscribe from the bus —
// callers shut the bus down separately once every pool has stopped.
func (p *WorkerPool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
	slog.Info("worker pool stopped", "pool", p.name)
}

// enqueue is the bus.Handler registered for this pool's topic. It never
// blocks: a full queue means the pool is saturated, so the message is
// dropped and counted rather than stalling the bus's receive loop for
// every other subscriber.
func (p *WorkerPool) enqueue(ctx context.Context, payload []byte) error {
	select {
	case p.queue <- payload:
		return nil
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		slog.ErrorContext(ctx, "worker pool queue full, dropping message", "pool", p.name, "topic", p.topic)
		return nil
	}
}

func (p *WorkerPool) Health() PoolHealth {
	stats := make([]WorkerHealth, len(p.workers))
	active := 0
	for i, w := range p.workers {
		h := w.Health()
		stats[i] = h
		if h.Status == WorkerStatusWorking {
			active++
		}
	}

	p.mu.Lock()
	dropped := p.dropped
	p.mu.Unlock()

	return PoolHealth{
		Name:          p.name,
		Topic:         p.topic,
		TotalWorkers:  len(p.workers),
		ActiveWorkers: active,
		QueueDepth:    len(p.queue),
		QueueCapacity: cap(p.queue),
		Dropped:       dropped,
		WorkerStats:   stats,
	}
}

func workerID(pool string, i int) string {
	return pool + "-worker-" + strconv.Itoa(i)
}
