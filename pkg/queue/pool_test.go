package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shift-health/pipeline/pkg/bus"
	"github.com/shift-health/pipeline/pkg/queue"
)

func newTestBus(t *testing.T) *bus.Bus {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := bus.New(rdb)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("start bus: %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

func TestWorkerPool_ProcessesPublishedMessages(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var received [][]byte
	handler := func(_ context.Context, payload []byte) error {
		mu.Lock()
		received = append(received, payload)
		mu.Unlock()
		return nil
	}

	pool := queue.NewWorkerPool("test-pool", "test-topic", b, handler, 2, 8)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	if err := b.Publish(context.Background(), "test-topic", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || string(received[0]) != "hello" {
		t.Fatalf("got %v, want one message containing \"hello\"", received)
	}

	health := pool.Health()
	if health.TotalWorkers != 2 {
		t.Errorf("TotalWorkers = %d, want 2", health.TotalWorkers)
	}
	if health.Name != "test-pool" || health.Topic != "test-topic" {
		t.Errorf("unexpected pool identity: %+v", health)
	}
}

func TestWorkerPool_StartIsIdempotent(t *testing.T) {
	b := newTestBus(t)
	handler := func(_ context.Context, _ []byte) error { return nil }

	pool := queue.NewWorkerPool("idempotent-pool", "topic", b, handler, 1, 4)
	pool.Start(context.Background())
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	health := pool.Health()
	if health.TotalWorkers != 1 {
		t.Errorf("a second Start call must not spawn extra workers: TotalWorkers = %d, want 1", health.TotalWorkers)
	}
}

func TestNewWorkerPool_ClampsInvalidSizes(t *testing.T) {
	b := newTestBus(t)
	handler := func(_ context.Context, _ []byte) error { return nil }

	pool := queue.NewWorkerPool("clamped-pool", "topic", b, handler, 0, 0)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	health := pool.Health()
	if health.TotalWorkers != 1 {
		t.Errorf("TotalWorkers = %d, want 1 (clamped minimum)", health.TotalWorkers)
	}
	if health.QueueCapacity != 1 {
		t.Errorf("QueueCapacity = %d, want 1 (clamped minimum)", health.QueueCapacity)
	}
}
