package jobboard

import "github.com/agentmesh/engine/pkg/errors"

// ErrTaskNotFound reports that taskID has no job_board row.
func ErrTaskNotFound(taskID string) error {
	return errors.NotFound("task not found: "+taskID, nil)
}

// ErrTaskAlreadyExists reports a duplicate task_id on CreateTask.
func ErrTaskAlreadyExists(taskID string) error {
	return errors.Conflict("task already exists: "+taskID, nil)
}
