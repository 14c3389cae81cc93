package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/routing"
)

type workflowState struct {
	Request model.LeaveRequest `json:"request"`
	Status  string             `json:"status"`
	Audit   []model.AuditEvent `json:"audit,omitempty"`
}

// LeaveApproval is the process definition for one leave request. It validates
// through the routing policy, auto-approves short personal leave, and
// otherwise delivers a manager-approval job to the orchestration layer and
// waits for outcome signals. The hr stage's task is synthesized by the core on
// manager approval, so this workflow only waits for its outcome; an escalated
// manager stage comes back as an HR decision on the first wait.
func LeaveApproval(ctx workflow.Context, req model.LeaveRequest) (string, error) {
	logger := workflow.GetLogger(ctx)
	pik := workflow.GetInfo(ctx).WorkflowExecution.ID
	logger.Info("leave approval started", "processInstanceKey", pik, "requester", req.Requester)

	state := &workflowState{
		Request: req,
		Status:  "validating",
		Audit:   make([]model.AuditEvent, 0),
	}

	appendAudit := func(kind, message string, data map[string]any) {
		state.Audit = append(state.Audit, model.AuditEvent{
			At:      workflow.Now(ctx),
			Kind:    kind,
			Message: message,
			Data:    data,
		})
	}

	// Queries so the API can inspect instance state without extra storage.
	_ = workflow.SetQueryHandler(ctx, "request", func() (model.LeaveRequest, error) {
		return state.Request, nil
	})
	_ = workflow.SetQueryHandler(ctx, "status", func() (string, error) {
		return state.Status, nil
	})
	_ = workflow.SetQueryHandler(ctx, "audit_log", func() ([]model.AuditEvent, error) {
		return state.Audit, nil
	})

	decision, err := routing.ValidateRequest(req)
	if err != nil {
		state.Status = "invalid"
		appendAudit("VALIDATION_FAILED", err.Error(), nil)
		return "INVALID_REQUEST", nil
	}
	appendAudit("VALIDATED", "request routed", map[string]any{"tier": decision.Tier})

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    1 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	finish := func(approved bool, decidedBy string) (string, error) {
		if !approved {
			state.Status = "rejected"
			appendAudit("REJECTED", "request rejected", map[string]any{"by": decidedBy})
			return "REJECTED", nil
		}
		if err := workflow.ExecuteActivity(ctx, "UpdateCalendar", req).Get(ctx, nil); err != nil {
			appendAudit("ERROR", "calendar update failed", map[string]any{"error": err.Error()})
			return "", err
		}
		state.Status = "approved"
		appendAudit("APPROVED", "request approved", map[string]any{"by": decidedBy})
		return "APPROVED", nil
	}

	if decision.Tier == model.TierAuto {
		if err := workflow.ExecuteActivity(ctx, "RecordAutoApproval", req).Get(ctx, nil); err != nil {
			return "", err
		}
		state.Status = "auto_approved"
		appendAudit("AUTO_APPROVED", "approved by system without review", nil)
		return "AUTO_APPROVED", nil
	}

	var jobKey string
	if err := workflow.SideEffect(ctx, func(workflow.Context) any {
		return engine.NewJobKey(pik, engine.TaskTypeManagerApproval)
	}).Get(&jobKey); err != nil {
		return "", err
	}

	job := engine.Job{
		JobKey:             jobKey,
		ProcessInstanceKey: pik,
		TaskType:           engine.TaskTypeManagerApproval,
		Variables:          req,
	}
	if err := workflow.ExecuteActivity(ctx, "DeliverJob", job).Get(ctx, nil); err != nil {
		logger.Error("manager job delivery failed", "error", err)
		return "", err
	}
	state.Status = "awaiting_manager"
	appendAudit("JOB_DELIVERED", "manager approval job delivered", map[string]any{"jobKey": jobKey})

	out := waitForOutcome(ctx)
	appendAudit("OUTCOME_RECEIVED", "stage outcome received", map[string]any{"jobKey": out.JobKey})
	approved, decidedByHR := readDecision(out.Variables)

	switch {
	case decidedByHR:
		// Escalated path: HR answered the manager-stage job directly.
		return finish(approved, "hr")
	case !approved:
		return finish(false, "manager")
	case decision.Tier == model.TierManagerThenHR:
		state.Status = "awaiting_hr"
		appendAudit("HR_STAGE_OPENED", "awaiting hr approval", nil)
		hrOut := waitForOutcome(ctx)
		appendAudit("OUTCOME_RECEIVED", "stage outcome received", map[string]any{"jobKey": hrOut.JobKey})
		hrApproved, _ := readDecision(hrOut.Variables)
		return finish(hrApproved, "hr")
	default:
		return finish(true, "manager")
	}
}

// waitForOutcome blocks until the next completed-job signal. A single stage is
// outstanding per instance at any time, so the next signal always belongs to
// the current stage.
func waitForOutcome(ctx workflow.Context) engine.JobOutcome {
	var out engine.JobOutcome
	sigCh := workflow.GetSignalChannel(ctx, engine.JobCompletedSignal)

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(sigCh, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &out)
	})
	for out.JobKey == "" {
		selector.Select(ctx)
	}
	return out
}

func readDecision(vars map[string]any) (approved, decidedByHR bool) {
	if v, ok := vars["approvedByHR"]; ok {
		return asBool(v), true
	}
	return asBool(vars["approvedByManager"]), false
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
