// Package agentregistry tracks agent heartbeats, current-task tags, and the
// aggregate counters MessageQueue/JobBoard transactions update.
package agentregistry

import (
	"context"
	"time"
)

// Status values for AgentStatus.Status.
const (
	StatusActive   = "active"
	StatusIdle     = "idle"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// AgentStatus is a value snapshot of one agent's registry row.
type AgentStatus struct {
	AgentID           string
	Status            string
	CurrentTask       string
	LastHeartbeat     time.Time
	MessagesPending   int
	MessagesProcessed int
	ErrorCount        int
}

// Registry is the AgentRegistry contract.
type Registry interface {
	// Heartbeat upserts agent's status, current task, and last-heartbeat
	// timestamp. Idempotent up to last-write-wins on those three fields;
	// counters are never touched here.
	Heartbeat(ctx context.Context, agent, status, currentTask string) error

	// Health returns agent's current snapshot, or ok=false if the agent
	// has never heartbeated.
	Health(ctx context.Context, agent string) (snapshot AgentStatus, ok bool, err error)

	// ListAll returns every known agent id, used by VotingLayer to
	// enumerate eligible voters when none are supplied explicitly.
	ListAll(ctx context.Context) ([]string, error)
}
