// Package simulation owns the scenario lifecycle state machine and the
// asynchronous execution engine. The state machine is the single writer of a
// scenario's status; every committed transition appends one history entry and
// emits exactly one lifecycle event after the mutation is applied.
package simulation

import (
	"fmt"

	"github.com/cyberrange/simnet-backend/model"
)

// Validation error codes. Each ordered validation check fails with its own
// code so callers can discriminate without parsing messages.
const (
	CodeNameRequired    = "NAME_REQUIRED"
	CodeNameTaken       = "NAME_TAKEN"
	CodeTypeInvalid     = "TYPE_INVALID"
	CodeVectorRequired  = "ATTACK_VECTOR_REQUIRED"
	CodeDurationInvalid = "DURATION_INVALID"
	CodeTargetsRequired = "TARGETS_REQUIRED"
	CodeTargetUnknown   = "TARGET_UNKNOWN"
	CodeTargetInactive  = "TARGET_INACTIVE"
	CodeMetadataInvalid = "METADATA_INVALID"
)

// ValidationError reports a scenario field or metadata violation. The
// triggering call fails synchronously and no state is changed.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErr(code, field, message string) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: message}
}

// InvalidStateTransitionError reports an operation attempted from the wrong
// source state, including a second transition requested while one is still
// in flight.
type InvalidStateTransitionError struct {
	ScenarioKey string
	From        model.ScenarioStatus
	Operation   string
	InFlight    bool
}

func (e *InvalidStateTransitionError) Error() string {
	if e.InFlight {
		return fmt.Sprintf("scenario %s has a transition in flight; %s rejected", e.ScenarioKey, e.Operation)
	}
	return fmt.Sprintf("cannot %s scenario %s from state %s", e.Operation, e.ScenarioKey, e.From)
}

// NotFoundError reports an unresolved scenario or device id.
type NotFoundError struct {
	Kind string // "scenario" or "device"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// ExecutionFailureError records an internal error during a run. It is never
// returned to the caller that started the execution; it is captured into the
// terminal FAILED transition and the emitted "failed" event.
type ExecutionFailureError struct {
	RunID   string
	Message string
}

func (e *ExecutionFailureError) Error() string {
	return fmt.Sprintf("run %s failed: %s", e.RunID, e.Message)
}
