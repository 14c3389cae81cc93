package model

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound means the jobKey is unknown to the store.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskAlreadyCompleted means a decision was already recorded for the jobKey.
	ErrTaskAlreadyCompleted = errors.New("task already completed")
	// ErrForbidden means the reviewer's role does not match the task's role.
	ErrForbidden = errors.New("forbidden")
)

// InvalidRequestError is a routing validation failure. The request is rejected
// before any task or process instance is created.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid leave request: " + e.Reason
}

// EngineAckError means the task was moved to completed history locally but the
// engine's job-completion call failed. Local state is not rolled back; only the
// engine call may be retried.
type EngineAckError struct {
	JobKey string
	Err    error
}

func (e *EngineAckError) Error() string {
	return fmt.Sprintf("engine completion not acknowledged for job %s: %v", e.JobKey, e.Err)
}

func (e *EngineAckError) Unwrap() error { return e.Err }
