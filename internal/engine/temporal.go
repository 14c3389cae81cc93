package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"leave-approval-service/internal/model"
)

// TemporalEngine adapts a Temporal cluster to the Engine contract. The
// LeaveApproval workflow is the process definition: job delivery happens
// through the DeliverJob activity calling Dispatch, and job completion is a
// signal to the owning workflow execution.
type TemporalEngine struct {
	tc  client.Client
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

var _ Engine = (*TemporalEngine)(nil)

func NewTemporalEngine(tc client.Client, log *slog.Logger) *TemporalEngine {
	return &TemporalEngine{
		tc:       tc,
		log:      log,
		handlers: make(map[string]Handler),
	}
}

func (e *TemporalEngine) Subscribe(taskType string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[taskType] = h
}

// Dispatch routes a delivered job to the subscribed handler. It is invoked by
// the DeliverJob activity, so Temporal's activity retry policy gives the
// at-least-once delivery the contract promises.
func (e *TemporalEngine) Dispatch(ctx context.Context, job Job) error {
	e.mu.RLock()
	h, ok := e.handlers[job.TaskType]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no subscriber for task type %q", job.TaskType)
	}
	return h(ctx, job)
}

// CompleteJob signals the process instance owning jobKey with the outcome
// variables.
func (e *TemporalEngine) CompleteJob(ctx context.Context, jobKey string, vars map[string]any) error {
	pik, ok := InstanceFromJobKey(jobKey)
	if !ok {
		return fmt.Errorf("malformed job key %q", jobKey)
	}
	out := JobOutcome{JobKey: jobKey, Variables: vars}
	if err := e.tc.SignalWorkflow(ctx, pik, "", JobCompletedSignal, out); err != nil {
		return fmt.Errorf("signal process instance %s: %w", pik, err)
	}
	return nil
}

// StartProcess executes a new LeaveApproval workflow. The workflow ID doubles
// as the processInstanceKey.
func (e *TemporalEngine) StartProcess(ctx context.Context, req model.LeaveRequest) (string, error) {
	pik := "leave-" + uuid.NewString()

	opts := client.StartWorkflowOptions{
		ID:                                       pik,
		TaskQueue:                                TaskQueue,
		WorkflowExecutionTimeout:                 30 * 24 * time.Hour,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	we, err := e.tc.ExecuteWorkflow(ctx, opts, WorkflowName, req)
	if err != nil {
		return "", fmt.Errorf("start process instance: %w", err)
	}
	e.log.Info("process instance started", "processInstanceKey", we.GetID(), "runId", we.GetRunID())
	return we.GetID(), nil
}
