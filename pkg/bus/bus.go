// Package bus implements the two-topic message bus (spec.md §6: topics
// "watch_events" and "state_estimates") on top of Redis Pub/Sub.
//
// The receive loop shape — a single goroutine owns the subscription and
// dispatches to registered per-channel handlers, with a command channel
// serializing Subscribe calls against it — is adapted from the teacher's
// Postgres LISTEN/NOTIFY listener (pkg/events/listener.go in the original
// tree): there the dedicated connection could not be shared between
// WaitForNotification and Exec; here a *redis.PubSub has the same
// single-owner constraint, so the same pattern applies even though
// go-redis reconnects the underlying connection for us.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Topic names (spec.md §6).
const (
	TopicWatchEvents    = "watch_events"
	TopicStateEstimates = "state_estimates"
)

// Handler processes one message's raw JSON payload. Returning an error
// only logs; Redis Pub/Sub has no ack or replay, so the message is not
// redelivered.
type Handler func(ctx context.Context, payload []byte) error

type subscribeCmd struct {
	topic   string
	handler Handler
}

// Bus is a Redis Pub/Sub-backed publisher/subscriber for the pipeline's
// two topics. It owns exactly one *redis.PubSub connection; all
// subscriptions are funneled through a single receive loop so there is
// never concurrent access to the underlying connection.
type Bus struct {
	rdb *redis.Client
	ps  *redis.PubSub

	cmdCh    chan subscribeCmd
	handlers map[string]Handler
	mu       sync.RWMutex

	cancel   context.CancelFunc
	loopDone chan struct{}
}

func New(rdb *redis.Client) *Bus {
	return &Bus{
		rdb:      rdb,
		cmdCh:    make(chan subscribeCmd, 8),
		handlers: make(map[string]Handler),
	}
}

// Publish JSON-encodes nothing itself — callers marshal their own message
// and hand this the raw bytes, so Bus stays payload-shape-agnostic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic. Safe to call before or after
// Start; if the receive loop is already running, the new subscription is
// picked up on its next poll of cmdCh.
func (b *Bus) Subscribe(topic string, handler Handler) {
	select {
	case b.cmdCh <- subscribeCmd{topic: topic, handler: handler}:
	default:
		// Buffer only needs to hold the two fixed topics at startup; a
		// full channel here means Subscribe is being misused post-startup
		// at high frequency. Register directly rather than block callers.
		b.mu.Lock()
		b.handlers[topic] = handler
		b.mu.Unlock()
	}
}

// Start opens the Pub/Sub connection and begins the receive loop. It
// blocks until the initial set of pending Subscribe calls has been
// applied, so callers can Subscribe then Start and know delivery won't
// race subscription.
func (b *Bus) Start(ctx context.Context) error {
	b.ps = b.rdb.Subscribe(ctx)
	if _, err := b.ps.Receive(ctx); err != nil {
		return fmt.Errorf("open pub/sub connection: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.loopDone = make(chan struct{})

	b.drainPendingSubscriptions(ctx)

	go func() {
		defer close(b.loopDone)
		b.receiveLoop(loopCtx)
	}()

	slog.InfoContext(ctx, "message bus started")
	return nil
}

func (b *Bus) drainPendingSubscriptions(ctx context.Context) {
	for {
		select {
		case cmd := <-b.cmdCh:
			b.applySubscribe(ctx, cmd)
		default:
			return
		}
	}
}

func (b *Bus) applySubscribe(ctx context.Context, cmd subscribeCmd) {
	if err := b.ps.Subscribe(ctx, cmd.topic); err != nil {
		slog.ErrorContext(ctx, "bus subscribe failed", "topic", cmd.topic, "error", err)
		return
	}
	b.mu.Lock()
	b.handlers[cmd.topic] = cmd.handler
	b.mu.Unlock()
}

// receiveLoop is the sole goroutine that reads from the PubSub connection
// and the sole goroutine that calls Subscribe on it, mirroring the
// teacher listener's single-owner discipline.
func (b *Bus) receiveLoop(ctx context.Context) {
	ch := b.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.cmdCh:
			b.applySubscribe(ctx, cmd)
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(ctx, msg)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg *redis.Message) {
	b.mu.RLock()
	handler := b.handlers[msg.Channel]
	b.mu.RUnlock()

	if handler == nil {
		return
	}
	if err := handler(ctx, []byte(msg.Payload)); err != nil {
		slog.ErrorContext(ctx, "bus handler failed", "topic", msg.Channel, "error", err)
	}
}

// Stop signals the receive loop to exit, waits for it to finish, then
// closes the Pub/Sub connection.
func (b *Bus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.loopDone != nil {
		<-b.loopDone
	}
	if b.ps != nil {
		_ = b.ps.Close()
	}
}
