// Package event is a synchronous, in-process notification bus.
//
// Subscribers are registered explicitly per event type; Notify delivers an
// event to every subscriber of its dynamic type in registration order before
// returning.
package event

import (
	"context"
	"sync"
)

// Handler receives an event value of any type.
type Handler func(ctx context.Context, ev any)

// Bus dispatches events to registered handlers. The zero value is ready to use.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeAll registers a handler that sees every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Subscribe registers fn for events whose dynamic type is T.
func Subscribe[T any](b *Bus, fn func(ctx context.Context, ev T)) {
	b.SubscribeAll(func(ctx context.Context, ev any) {
		if typed, ok := ev.(T); ok {
			fn(ctx, typed)
		}
	})
}

// Notify delivers ev synchronously. A nil bus drops the event.
func (b *Bus) Notify(ctx context.Context, ev any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, ev)
	}
}

// Recorder collects every event it sees. Useful for tests and audit trails.
type Recorder struct {
	mu     sync.Mutex
	events []any
}

// Attach subscribes the recorder to b and returns it.
func (r *Recorder) Attach(b *Bus) *Recorder {
	b.SubscribeAll(func(_ context.Context, ev any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	})
	return r
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Of returns the recorded events of type T, in order.
func Of[T any](r *Recorder) []T {
	var out []T
	for _, ev := range r.Events() {
		if typed, ok := ev.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
