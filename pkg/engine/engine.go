// Package engine wires the Store and one instance of every component
// (MessageQueue, SubscriptionRegistry, JobBoard, AgentRegistry, VotingLayer)
// behind a single explicit handle. The engine keeps no package-level state
// of its own: every caller constructs and owns its own Engine. (pkg/logger's
// default logger, set by logger.Init, is the module's one process-wide value.)
package engine

import (
	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/agentregistry"
	agentsqlite "github.com/agentmesh/engine/pkg/agentregistry/adapters/sqlite"
	"github.com/agentmesh/engine/pkg/events"
	"github.com/agentmesh/engine/pkg/jobboard"
	jobsqlite "github.com/agentmesh/engine/pkg/jobboard/adapters/sqlite"
	"github.com/agentmesh/engine/pkg/messagequeue"
	msgsqlite "github.com/agentmesh/engine/pkg/messagequeue/adapters/sqlite"
	"github.com/agentmesh/engine/pkg/subscriptions"
	subsqlite "github.com/agentmesh/engine/pkg/subscriptions/adapters/sqlite"
	"github.com/agentmesh/engine/pkg/voting"
	votingfs "github.com/agentmesh/engine/pkg/voting/adapters/fs"
)

// Config controls the Store and the resilience/tracing decorators layered
// onto the MessageQueue.
type Config struct {
	Store      store.Config
	Resilience messagequeue.ResilientQueueConfig
}

// Engine is the explicit handle every caller constructs and owns. Close it
// to release the underlying SQLite connection pools.
type Engine struct {
	store *store.Store

	Messages      messagequeue.Queue
	Subscriptions subscriptions.Registry
	Jobs          jobboard.Board
	Agents        agentregistry.Registry
	Votes         voting.Layer
}

// Open opens the Store at cfg.Store.RootDir and constructs every component
// against it, wrapping the MessageQueue with tracing/logging and
// circuit-breaker/retry decorators.
func Open(cfg Config) (*Engine, error) {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	base := msgsqlite.New(st)
	instrumented := messagequeue.NewInstrumentedQueue(base)
	resilient := messagequeue.NewResilientQueue(instrumented, cfg.Resilience)

	agents := agentsqlite.New(st)

	return &Engine{
		store:         st,
		Messages:      resilient,
		Subscriptions: subsqlite.New(st),
		Jobs:          jobsqlite.New(st),
		Agents:        agents,
		Votes:         votingfs.New(st, resilient, agents),
	}, nil
}

// Close releases the Store's connection pools.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the underlying Store for callers that need direct access to
// it (its read/write pools or its votes and artifacts directories). The
// daemon's maintenance sweep does not use it; it goes through Messages and
// Votes.
func (e *Engine) Store() *store.Store { return e.store }

// Events exposes the Store's in-process lifecycle bus (store.migrated,
// store.busy_retry, ...) so callers embedding the Engine can subscribe to
// it without reaching into Store directly.
func (e *Engine) Events() events.Bus { return e.store.Events() }
