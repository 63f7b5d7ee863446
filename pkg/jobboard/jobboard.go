// Package jobboard tracks task entities with an atomically-enforced claim
// transition and caller-policed status transitions above it. ClaimTask and
// UpdateTaskStatus emit a coordinating message into the message bus in the
// same write transaction as the row mutation (the sqlite adapter writes it
// with messagequeue/adapters/sqlite.SendWithTx, not through a
// messagequeue.Queue), so a task state change and the notification that
// announces it never diverge.
package jobboard

import (
	"context"
	"time"
)

// Task status values. open -> assigned -> in-progress -> {done, failed,
// blocked}. blocked carries a reason and may return to in-progress. ClaimTask
// is the only engine-enforced edge; everything else is caller-policed.
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
	StatusBlocked    = "blocked"
)

// Task is a value snapshot of one job_board row.
type Task struct {
	TaskID       string
	Title        string
	Description  string
	Status       string
	AssignedTo   string
	Priority     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Dependencies []string
	Result       string
}

// Board is the JobBoard contract.
type Board interface {
	// CreateTask inserts a new task with status=open.
	CreateTask(ctx context.Context, taskID, title, description string, priority int, dependencies []string) error

	// ClaimTask performs a single conditional UPDATE from status=open to
	// status=assigned, guarded by status='open', and returns true iff
	// exactly one row was affected. Dependency satisfaction is never
	// checked here; see DependenciesSatisfied. On a winning claim, the
	// corresponding task.claimed message is emitted in the same
	// transaction as the row update.
	ClaimTask(ctx context.Context, agentID, taskID string) (bool, error)

	// UpdateTaskStatus performs an unguarded status update and emits a
	// task.update message in the same transaction. Callers are
	// responsible for state-machine legality.
	UpdateTaskStatus(ctx context.Context, taskID, status, result string) error

	// OpenTasks returns up to limit open tasks ordered by priority DESC,
	// created_at ASC.
	OpenTasks(ctx context.Context, limit int) ([]Task, error)

	// DependenciesSatisfied reports whether every dependency of taskID is
	// in status=done, and names the ones that are not. It never blocks
	// ClaimTask; callers may use it to pre-check before claiming.
	DependenciesSatisfied(ctx context.Context, taskID string) (bool, []string, error)
}
