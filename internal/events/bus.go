// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrBusClosed is returned by Publish and Flush after Shutdown.
var ErrBusClosed = errors.New("event bus is shutting down")

// Publisher is the producing side of the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Delivery selects where a subscriber's handler runs.
type Delivery int

const (
	// Inline handlers run on the publishing goroutine before Publish returns.
	Inline Delivery = iota
	// Queued handlers run in publish order on the bus worker.
	Queued
)

type subscriber struct {
	handler  Handler
	delivery Delivery
}

// queued is one entry of the worker queue: an event, or a flush barrier.
type queued struct {
	event   Event
	flushed chan struct{}
}

// Bus is an in-memory event bus. Inline subscribers see a record
// before its publisher continues; queued subscribers see records in
// publish order, off the publisher's path.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[EventType]map[string]subscriber
	logger    *zap.Logger
	wg        sync.WaitGroup
	queue     chan queued
	queueSize int

	// sendMu keeps senders out while Shutdown closes the queue.
	sendMu sync.RWMutex
	closed bool

	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewBus creates a bus whose queue holds up to queueSize records.
func NewBus(logger *zap.Logger, queueSize int) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	bus := &Bus{
		handlers:  make(map[EventType]map[string]subscriber),
		logger:    logger.Named("event_bus"),
		queue:     make(chan queued, queueSize),
		queueSize: queueSize,
	}

	bus.wg.Add(1)
	go bus.processQueue()

	return bus
}

// Subscribe registers handler for every given event type and returns one
// subscription that removes all of them.
func (b *Bus) Subscribe(handler Handler, delivery Delivery, types ...EventType) Subscription {
	subs := make(multiSubscription, 0, len(types))
	for _, t := range types {
		subs = append(subs, b.subscribe(t, handler, delivery))
	}
	return subs
}

func (b *Bus) subscribe(eventType EventType, handler Handler, delivery Delivery) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]subscriber)
	}
	b.handlers[eventType][id] = subscriber{handler: handler, delivery: delivery}

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id),
		zap.Bool("queued", delivery == Queued))

	return &subscription{
		id:       id,
		eventBus: b,
		typ:      eventType,
	}
}

// handlersFor snapshots the handlers of t with the given delivery. The copy
// lets handlers run without holding mu.
func (b *Bus) handlersFor(t EventType, delivery Delivery) (map[string]Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]Handler)
	others := false
	for id, s := range b.handlers[t] {
		if s.delivery == delivery {
			out[id] = s.handler
		} else {
			others = true
		}
	}
	return out, others
}

// Publish runs the inline handlers of event and queues it for the queued
// ones. It blocks while the queue is full. Inline handler errors are joined
// into the result; queued handler errors are only logged.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	inline, hasQueued := b.handlersFor(event.Type(), Inline)
	err := b.deliver(ctx, event, inline)
	if !hasQueued {
		return err
	}

	select {
	case b.queue <- queued{event: event}:
		return err
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("queue %s: %w", event.Type(), ctx.Err()))
	}
}

// Flush waits until every record queued before the call has been handled.
func (b *Bus) Flush(ctx context.Context) error {
	done := make(chan struct{})

	b.sendMu.RLock()
	if b.closed {
		b.sendMu.RUnlock()
		return ErrBusClosed
	}
	select {
	case b.queue <- queued{flushed: done}:
	case <-ctx.Done():
		b.sendMu.RUnlock()
		return ctx.Err()
	}
	b.sendMu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) deliver(ctx context.Context, event Event, handlers map[string]Handler) error {
	var errs []error
	for id, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.failed.Add(1)
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", id),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		b.delivered.Add(1)
	}

	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %w", errors.Join(errs...))
	}
	return nil
}

// processQueue hands queued records to queued handlers until Shutdown
// closes the queue, then returns once the queue is drained.
func (b *Bus) processQueue() {
	defer b.wg.Done()

	// Records are committed already; queued handlers still get them after Shutdown.
	ctx := context.Background()
	for q := range b.queue {
		if q.flushed != nil {
			close(q.flushed)
			continue
		}
		handlers, _ := b.handlersFor(q.event.Type(), Queued)
		_ = b.deliver(ctx, q.event, handlers)
	}
}

// unsubscribe removes a handler subscription.
func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.handlers[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.handlers, eventType)
		}
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown stops accepting records and waits for the queue to drain.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.logger.Info("Shutting down event bus")

	b.sendMu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.sendMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("Event bus shutdown complete",
			zap.Uint64("delivered", b.delivered.Load()),
			zap.Uint64("failed", b.failed.Load()))
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending_events", len(b.queue)))
		return ctx.Err()
	}
}

// Stats returns delivery counters and subscriptions per event type.
func (b *Bus) Stats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlerCounts := make(map[string]int, len(b.handlers))
	for eventType, handlers := range b.handlers {
		handlerCounts[string(eventType)] = len(handlers)
	}

	return map[string]interface{}{
		"queue_size":        b.queueSize,
		"pending_events":    len(b.queue),
		"event_types":       len(b.handlers),
		"delivered":         b.delivered.Load(),
		"failed":            b.failed.Load(),
		"handlers_per_type": handlerCounts,
	}
}
