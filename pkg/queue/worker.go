package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shift-health/pipeline/pkg/bus"
)

// Worker drains a shared message channel and hands each payload to a
// handler, tracking the same idle/working/processed-count health
// bookkeeping the original session-queue worker exposed.
type Worker struct {
	id      string
	queue   <-chan []byte
	handler bus.Handler
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu                sync.RWMutex
	status            WorkerStatus
	messagesProcessed int
	messagesFailed    int
	lastActivity      time.Time
}

func NewWorker(id string, queue <-chan []byte, handler bus.Handler) *Worker {
	return &Worker{
		id:           id,
		queue:        queue,
		handler:      handler,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            w.status,
		MessagesProcessed: w.messagesProcessed,
		MessagesFailed:    w.messagesFailed,
		LastActivity:      w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("queue worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("queue worker shutting down")
			return
		case <-ctx.Done():
			return
		case payload, ok := <-w.queue:
			if !ok {
				return
			}
			w.process(ctx, payload)
		}
	}
}

func (w *Worker) process(ctx context.Context, payload []byte) {
	w.setStatus(WorkerStatusWorking)
	defer w.setStatus(WorkerStatusIdle)

	if err := w.handler(ctx, payload); err != nil {
		slog.ErrorContext(ctx, "queue message handler failed", "worker_id", w.id, "error", err)
		w.mu.Lock()
		w.messagesFailed++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.messagesProcessed++
	w.mu.Unlock()
}

func (w *Worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.lastActivity = time.Now()
}
