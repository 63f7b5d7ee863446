package messagequeue

import (
	"fmt"

	"github.com/agentmesh/engine/pkg/errors"
)

// ErrPriorityOutOfRange reports a priority outside [1,10].
func ErrPriorityOutOfRange(priority int) *errors.AppError {
	return errors.InvalidArgument(fmt.Sprintf("priority %d out of range [1,10]", priority), nil)
}

// ErrPayloadNotSerializable reports a payload that cannot be marshaled to
// a self-contained textual form.
func ErrPayloadNotSerializable(cause error) *errors.AppError {
	return errors.InvalidArgument("payload is not serializable", cause)
}

// ErrDuplicateResponseCorrelation reports a second response sent with a
// correlation id that already has one.
func ErrDuplicateResponseCorrelation(correlationID string) *errors.AppError {
	return errors.Conflict("a response with correlation id "+correlationID+" already exists", nil)
}

// ErrMessageNotFound reports a claim/complete/respond against an unknown
// message id.
func ErrMessageNotFound(messageID string) *errors.AppError {
	return errors.NotFound("message not found: "+messageID, nil)
}

// ErrMissingCorrelationID reports SendResponse called against a message
// that never carried a correlation id.
func ErrMissingCorrelationID(messageID string) *errors.AppError {
	return errors.InvalidArgument("message "+messageID+" has no correlation id to respond to", nil)
}
