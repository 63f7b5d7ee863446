// Package memory is an in-process events.Bus backed by a map of
// topic -> handlers, guarded by a mutex and run synchronously on Publish.
package memory

import (
	"context"
	"sync"

	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/events"
	"github.com/agentmesh/engine/pkg/logger"
)

// Bus is a single-process events.Bus. Handler errors are logged, not
// returned, so a failing subscriber never blocks or fails the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]events.Handler
	closed   bool
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]events.Handler)}
}

func (b *Bus) Publish(ctx context.Context, topic string, event events.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.Internal("event bus closed", nil)
	}
	for _, h := range b.handlers[topic] {
		if err := h(ctx, event); err != nil {
			logger.L().ErrorContext(ctx, "event handler failed",
				"topic", topic, "event_type", event.Type, "error", err)
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string, handler events.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Internal("event bus closed", nil)
	}
	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
	return nil
}
