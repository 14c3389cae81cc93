// Package approval implements the completion protocol: authorize the
// reviewer, move the task to history atomically, acknowledge the job to the
// engine, notify, and open the next stage when one is due.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/notify"
	"leave-approval-service/internal/routing"
	"leave-approval-service/internal/store"
)

// Canceller disarms an escalation timer. Implemented by escalate.Scheduler.
type Canceller interface {
	Cancel(jobKey string) bool
}

// NextStager synthesizes the hr-approval stage after a manager approval on a
// manager_then_hr tier request. Implemented by intake.Intake.
type NextStager interface {
	SynthesizeHRStage(ctx context.Context, processInstanceKey string, vars model.LeaveRequest) error
}

// Request is one reviewer decision.
type Request struct {
	JobKey   string
	Role     model.Role
	Reviewer string
	Approved bool
	Comments string
}

type Protocol struct {
	store    *store.TaskStore
	sched    Canceller
	engine   engine.Engine
	notifier notify.Notifier
	next     NextStager
	log      *slog.Logger
}

func New(s *store.TaskStore, sched Canceller, eng engine.Engine, n notify.Notifier, next NextStager, log *slog.Logger) *Protocol {
	return &Protocol{store: s, sched: sched, engine: eng, notifier: n, next: next, log: log}
}

// Complete records a reviewer decision for jobKey.
//
// The returned error is ErrTaskNotFound for an unknown jobKey,
// ErrTaskAlreadyCompleted when someone already decided it, ErrForbidden on a
// role mismatch, or an *EngineAckError when the local record was written but
// the engine did not acknowledge. In the last case the completed task is still
// returned and must not be re-decided; only the engine call may be retried.
func (p *Protocol) Complete(ctx context.Context, req Request) (model.CompletedTask, error) {
	task, err := p.store.FindPending(req.JobKey)
	if err != nil {
		if _, cerr := p.store.FindCompleted(req.JobKey); cerr == nil {
			return model.CompletedTask{}, model.ErrTaskAlreadyCompleted
		}
		return model.CompletedTask{}, model.ErrTaskNotFound
	}

	if req.Role != task.Role && req.Role != model.RoleAdmin {
		return model.CompletedTask{}, fmt.Errorf("%w: task %s is assigned to %s, decided as %s",
			model.ErrForbidden, req.JobKey, task.Role, req.Role)
	}

	decidedBy := req.Reviewer
	if decidedBy == "" {
		decidedBy = string(task.Role)
	}
	now := time.Now().UTC()

	// The atomic move is the arbitration point shared with the escalation
	// scheduler; the role observed at authorization guards it, so an
	// escalation landing in between makes this decision lose the race.
	completed, err := p.store.CompletePending(req.JobKey, task.Role, model.Decision{
		Approved:  req.Approved,
		DecidedBy: decidedBy,
		Role:      task.Role,
		Comments:  req.Comments,
		DecidedAt: now,
	})
	if err != nil {
		return model.CompletedTask{}, err
	}

	// Best effort: a false return means the timer already fired or never
	// existed, and the store has settled it either way.
	p.sched.Cancel(req.JobKey)

	vars := outcomeVariables(completed.Role, decidedBy, req.Approved, req.Comments, now)
	if err := p.engine.CompleteJob(ctx, req.JobKey, vars); err != nil {
		p.log.Error("engine did not acknowledge completion, local history kept",
			"jobKey", req.JobKey, "error", err)
		return completed, &model.EngineAckError{JobKey: req.JobKey, Err: err}
	}

	p.log.Info("task completed",
		"jobKey", req.JobKey,
		"role", completed.Role,
		"approved", req.Approved,
		"decidedBy", decidedBy,
	)
	p.afterAck(ctx, completed)
	return completed, nil
}

// RetryAck re-drives the engine completion call from the completed record
// without asking the reviewer again. It is the operator path out of the
// EngineAckFailed state; an already-acknowledged job is a no-op so a stray
// retry cannot signal the engine twice.
func (p *Protocol) RetryAck(ctx context.Context, jobKey string) error {
	done, err := p.store.FindCompleted(jobKey)
	if err != nil {
		return model.ErrTaskNotFound
	}
	if done.AckedAt != nil {
		p.log.Info("completion already acknowledged", "jobKey", jobKey)
		return nil
	}
	vars := outcomeVariables(done.Role, done.CompletedBy, done.Approved, done.Comments, done.CompletedAt)
	if err := p.engine.CompleteJob(ctx, jobKey, vars); err != nil {
		return &model.EngineAckError{JobKey: jobKey, Err: err}
	}
	p.log.Info("engine completion re-acknowledged", "jobKey", jobKey)
	p.afterAck(ctx, done)
	return nil
}

// afterAck runs the steps gated on a successful engine acknowledgement:
// record the ack, notify the requester, and open the hr stage when the tier
// calls for one. Shared with RetryAck so an ack recovered later still routes
// the next stage.
func (p *Protocol) afterAck(ctx context.Context, done model.CompletedTask) {
	if err := p.store.MarkAcked(done.JobKey, time.Now().UTC()); err != nil {
		p.log.Warn("ack bookkeeping failed", "jobKey", done.JobKey, "error", err)
	}
	p.dispatchNotify(ctx, notify.Event{
		Kind:      notify.KindDecision,
		Requester: done.Variables.Requester,
		Role:      string(done.Role),
		Approved:  done.Approved,
		Comments:  done.Comments,
	})
	if done.Role == model.RoleManager && done.Approved {
		p.openHRStageIfDue(ctx, done)
	}
}

func (p *Protocol) openHRStageIfDue(ctx context.Context, done model.CompletedTask) {
	d, err := routing.ValidateRequest(done.Variables)
	if err != nil || d.Tier != model.TierManagerThenHR {
		return
	}
	if err := p.next.SynthesizeHRStage(ctx, done.ProcessInstanceKey, done.Variables); err != nil {
		p.log.Error("hr stage synthesis failed",
			"processInstanceKey", done.ProcessInstanceKey, "error", err)
	}
}

// dispatchNotify delivers the event without blocking completion on the
// notification transport and without propagating its failure.
func (p *Protocol) dispatchNotify(ctx context.Context, ev notify.Event) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := p.notifier.Notify(ctx, ev); err != nil {
			p.log.Warn("decision notification failed", "requester", ev.Requester, "error", err)
		}
	}()
}

// outcomeVariables builds the engine outcome payload. The approval flag's name
// depends on the deciding role, as the process definition gates on it.
func outcomeVariables(role model.Role, decidedBy string, approved bool, comments string, at time.Time) map[string]any {
	name := "approvedByManager"
	if role == model.RoleHR {
		name = "approvedByHR"
	}
	return map[string]any{
		name:                        approved,
		string(role) + "Comments":   comments,
		string(role) + "ApprovedBy": decidedBy,
		string(role) + "ApprovedAt": at.Format(time.RFC3339),
	}
}
