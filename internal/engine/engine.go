// Package engine defines the contract consumed from the external
// business-process engine and its Temporal-backed implementation. Jobs are
// delivered at-least-once and possibly duplicated; deduplication is the
// intake layer's problem, not the engine's.
package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"leave-approval-service/internal/model"
)

// Task queue and signal names of the leave approval process definition.
const (
	TaskQueue          = "LEAVE_APPROVAL_TASK_QUEUE"
	JobCompletedSignal = "JOB_COMPLETED_SIGNAL"
	WorkflowName       = "LeaveApproval"
)

// Task types delivered by the process definition. ManualReview is the legacy
// generic stage whose role is computed by the routing policy.
const (
	TaskTypeManagerApproval = "manager-approval"
	TaskTypeHRApproval      = "hr-approval"
	TaskTypeManualReview    = "manual-review"
)

// Job is one unit of work delivered for a single workflow stage.
type Job struct {
	JobKey             string             `json:"jobKey"`
	ProcessInstanceKey string             `json:"processInstanceKey"`
	TaskType           string             `json:"taskType"`
	Variables          model.LeaveRequest `json:"variables"`
}

// JobOutcome carries a completed job's outcome variables back to the process
// instance.
type JobOutcome struct {
	JobKey    string         `json:"jobKey"`
	Variables map[string]any `json:"variables"`
}

// Handler processes one delivered job.
type Handler func(ctx context.Context, job Job) error

// Engine is the consumed process-engine contract.
type Engine interface {
	// Subscribe registers a handler for every delivered job of taskType.
	Subscribe(taskType string, h Handler)
	// CompleteJob signals the engine that a job is decided. Idempotency on
	// the engine side is assumed but not guaranteed; callers must prevent
	// double completion themselves.
	CompleteJob(ctx context.Context, jobKey string, vars map[string]any) error
	// StartProcess starts a new process instance and returns its
	// processInstanceKey.
	StartProcess(ctx context.Context, req model.LeaveRequest) (string, error)
}

// NewJobKey issues a jobKey for a stage of the given process instance. The
// processInstanceKey is embedded as the first segment so the outcome signal
// can be routed without a lookup table; the key stays opaque to the core.
func NewJobKey(processInstanceKey, taskType string) string {
	return processInstanceKey + "/" + taskType + "/" + uuid.NewString()[:8]
}

// InstanceFromJobKey extracts the processInstanceKey segment of a jobKey.
func InstanceFromJobKey(jobKey string) (string, bool) {
	i := strings.IndexByte(jobKey, '/')
	if i <= 0 {
		return "", false
	}
	return jobKey[:i], true
}
