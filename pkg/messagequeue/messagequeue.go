// Package messagequeue implements the durable, priority-ordered,
// channel-routed message bus every agent sends and receives through.
//
// # Architecture
//
// The package follows the adapter pattern used throughout this module:
//   - Queue is the core interface, defined here with zero backend-specific
//     imports.
//   - The real backend lives in adapters/sqlite, built on internal/store.
//   - adapters/memory is an in-process double used only by this package's
//     own contract tests, so the same suite exercises both backends.
//
// # Usage
//
//	q := sqliteq.New(st)
//	id, err := q.Send(ctx, messagequeue.SendRequest{
//	    From: "planner", Channel: "general", Type: "task.update",
//	    Priority: 5, Payload: map[string]any{"status": "done"},
//	})
package messagequeue

import (
	"context"
	"time"
)

// Message status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Message is the canonical envelope returned to callers. It is always a
// value snapshot: no component holds a reference into the store across
// calls.
type Message struct {
	ID              string
	Type            string
	Version         string
	Timestamp       time.Time
	CorrelationID   string
	FromAgent       string
	ToAgent         string
	Channel         string
	Priority        int
	Payload         interface{}
	Status          string
	CreatedAt       time.Time
	ExpiresAt       *time.Time
	DeliveryCount   int
	LastDeliveredAt *time.Time
	Error           string
}

// IsBroadcast reports whether this message has no single recipient.
func (m Message) IsBroadcast() bool {
	return m.ToAgent == ""
}

// SendRequest carries the arguments to Send.
type SendRequest struct {
	From          string
	To            string // empty means broadcast
	Channel       string
	Type          string
	Payload       interface{}
	Priority      int // [1,10]
	CorrelationID string
	TTL           time.Duration // zero means no expiry
}

// Queue is the durable message bus contract every adapter implements.
type Queue interface {
	// Send inserts a new pending message inside an immediate write
	// transaction, incrementing the recipient's messages_pending counter
	// when the message is direct. Returns the new message's id.
	Send(ctx context.Context, req SendRequest) (string, error)

	// Receive returns up to limit pending messages visible to agentID:
	// direct messages addressed to agentID (matched on recipient alone,
	// regardless of channel), plus broadcasts on any of channels that
	// agentID is subscribed to and has not yet claimed. If typeFilter is
	// non-empty, only messages of that exact type are returned. Ordered
	// by priority DESC, timestamp ASC.
	Receive(ctx context.Context, agentID string, channels []string, limit int, typeFilter string) ([]Message, error)

	// Claim attempts to take exclusive ownership of messageID on behalf
	// of agentID. Returns false (not an error) when another agent won
	// the race or already claimed this broadcast.
	Claim(ctx context.Context, agentID, messageID string) (bool, error)

	// Complete marks messageID done when errMsg is empty, updating
	// sender/recipient counters either way. With errMsg set, a message
	// delivered fewer than three times returns to pending so it can be
	// claimed again; once its delivery count reaches three it is marked
	// failed, archived to the dead-letter queue, and removed.
	Complete(ctx context.Context, messageID string, errMsg string) error

	// SendResponse sends a reply to original, deriving the response type
	// from original's own type and carrying original's correlation id.
	// The second call with the same correlation id fails with a conflict.
	SendResponse(ctx context.Context, original Message, payload interface{}, artifactPath string) (string, error)

	// CleanupExpired deletes every message whose expires_at has passed
	// and returns how many were removed.
	CleanupExpired(ctx context.Context) (int, error)
}
