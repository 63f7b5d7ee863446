/*
Package events provides an in-process event bus for decoupling components via domain events.

It defines a standard Event structure and a Bus interface for Publish/Subscribe patterns.
This package is intended for local process constraints. For the durable,
cross-process message bus agents coordinate through, see pkg/messagequeue.

Usage:

	bus := memory.New()
	bus.Subscribe(ctx, "store.busy_retry", func(ctx context.Context, e events.Event) error {
	    // Handle event
	    return nil
	})

	bus.Publish(ctx, "store.busy_retry", events.Event{Type: "store.busy_retry", Source: "internal/store"})
*/
package events
