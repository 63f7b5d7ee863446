// Package sqlite is the durable jobboard.Board backend. ClaimTask and
// UpdateTaskStatus call messagequeue/adapters/sqlite.SendWithTx from inside
// their own store.WithImmediate scope, so the task row mutation and its
// coordinating task.claimed/task.update message commit or roll back together.
package sqlite

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/agentmesh/engine/internal/store"
	"github.com/agentmesh/engine/pkg/errors"
	"github.com/agentmesh/engine/pkg/jobboard"
	"github.com/agentmesh/engine/pkg/messagequeue"
	msgsqlite "github.com/agentmesh/engine/pkg/messagequeue/adapters/sqlite"
	"gorm.io/gorm"
)

// Adapter implements jobboard.Board over internal/store.
type Adapter struct {
	store *store.Store
}

// New wraps st as a jobboard.Board. The returned adapter emits its
// coordinating messages itself; it does not take a messagequeue.Queue
// dependency because it needs the sqlite write transaction directly to
// satisfy the transactional-consistency requirement between the task row
// and its notification.
func New(st *store.Store) *Adapter {
	return &Adapter{store: st}
}

func (a *Adapter) CreateTask(ctx context.Context, taskID, title, description string, priority int, dependencies []string) error {
	depsJSON, err := json.Marshal(dependencies)
	if err != nil {
		return errors.InvalidArgument("dependencies not serializable", err)
	}
	now := time.Now().UTC()
	row := store.JobBoardTask{
		TaskID:       taskID,
		Title:        title,
		Description:  description,
		Status:       jobboard.StatusOpen,
		Priority:     priority,
		CreatedAt:    now,
		UpdatedAt:    now,
		Dependencies: string(depsJSON),
	}
	return a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return jobboard.ErrTaskAlreadyExists(taskID)
			}
			return errors.Wrap(err, "failed to insert task")
		}
		return nil
	})
}

func (a *Adapter) ClaimTask(ctx context.Context, agentID, taskID string) (bool, error) {
	var won bool
	err := a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		res := tx.Model(&store.JobBoardTask{}).
			Where("task_id = ? AND status = ?", taskID, jobboard.StatusOpen).
			Updates(map[string]interface{}{
				"status":      jobboard.StatusAssigned,
				"assigned_to": agentID,
				"updated_at":  now,
			})
		if res.Error != nil {
			return errors.Wrap(res.Error, "failed to claim task")
		}
		if res.RowsAffected != 1 {
			won = false
			return nil
		}
		won = true
		_, err := msgsqlite.SendWithTx(tx, messagequeue.SendRequest{
			From:     "system",
			Channel:  "general",
			Type:     "task.claimed",
			Priority: 5,
			Payload: map[string]interface{}{
				"task_id":  taskID,
				"agent_id": agentID,
			},
		})
		return err
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (a *Adapter) UpdateTaskStatus(ctx context.Context, taskID, status, result string) error {
	return a.store.WithImmediate(ctx, func(tx *gorm.DB) error {
		var existing store.JobBoardTask
		if err := tx.Where("task_id = ?", taskID).First(&existing).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return jobboard.ErrTaskNotFound(taskID)
			}
			return errors.Wrap(err, "failed to look up task")
		}

		updates := map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}
		if result != "" {
			updates["result"] = result
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return errors.Wrap(err, "failed to update task status")
		}

		_, err := msgsqlite.SendWithTx(tx, messagequeue.SendRequest{
			From:     "system",
			Channel:  "general",
			Type:     "task.update",
			Priority: 5,
			Payload: map[string]interface{}{
				"task_id": taskID,
				"status":  status,
				"result":  result,
			},
		})
		return err
	})
}

func (a *Adapter) OpenTasks(ctx context.Context, limit int) ([]jobboard.Task, error) {
	var rows []store.JobBoardTask
	q := a.store.Read(ctx).
		Where("status = ?", jobboard.StatusOpen).
		Order("priority DESC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list open tasks")
	}
	tasks := make([]jobboard.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, toTask(r))
	}
	return tasks, nil
}

func (a *Adapter) DependenciesSatisfied(ctx context.Context, taskID string) (bool, []string, error) {
	var row store.JobBoardTask
	if err := a.store.Read(ctx).Where("task_id = ?", taskID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil, jobboard.ErrTaskNotFound(taskID)
		}
		return false, nil, errors.Wrap(err, "failed to look up task")
	}

	var deps []string
	if row.Dependencies != "" {
		if err := json.Unmarshal([]byte(row.Dependencies), &deps); err != nil {
			return false, nil, errors.Internal("failed to decode dependencies", err)
		}
	}
	if len(deps) == 0 {
		return true, nil, nil
	}

	var depRows []store.JobBoardTask
	if err := a.store.Read(ctx).Where("task_id IN ?", deps).Find(&depRows).Error; err != nil {
		return false, nil, errors.Wrap(err, "failed to look up dependencies")
	}
	doneByID := make(map[string]bool, len(depRows))
	for _, d := range depRows {
		doneByID[d.TaskID] = d.Status == jobboard.StatusDone
	}

	var unsatisfied []string
	for _, dep := range deps {
		if !doneByID[dep] {
			unsatisfied = append(unsatisfied, dep)
		}
	}
	return len(unsatisfied) == 0, unsatisfied, nil
}

func toTask(row store.JobBoardTask) jobboard.Task {
	t := jobboard.Task{
		TaskID:      row.TaskID,
		Title:       row.Title,
		Description: row.Description,
		Status:      row.Status,
		Priority:    row.Priority,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.AssignedTo != nil {
		t.AssignedTo = *row.AssignedTo
	}
	if row.Result != nil {
		t.Result = *row.Result
	}
	if row.Dependencies != "" {
		_ = json.Unmarshal([]byte(row.Dependencies), &t.Dependencies)
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
