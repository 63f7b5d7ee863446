// Package subscriptions maintains the many-to-many map of agent to channel
// that feeds broadcast fan-out in pkg/messagequeue.
package subscriptions

import "context"

// Registry is the SubscriptionRegistry contract.
type Registry interface {
	// Subscribe adds agent to channel. Idempotent: a second call for the
	// same pair leaves a single row.
	Subscribe(ctx context.Context, agent, channel string) error

	// Unsubscribe removes agent from channel. Idempotent: unsubscribing an
	// agent not currently subscribed is a no-op, not an error.
	Unsubscribe(ctx context.Context, agent, channel string) error

	// ChannelsOf returns the sorted list of channels agent is subscribed to.
	ChannelsOf(ctx context.Context, agent string) ([]string, error)
}
