// Package intake turns delivered engine jobs into pending tasks. The engine
// delivers at-least-once, so a duplicate jobKey is expected and dropped
// silently; everything else gets a role, an escalation deadline when a
// manager must answer, and a timer.
package intake

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

// DefaultEscalationWindow bounds how long a manager-tier task may stay
// unanswered before it is reassigned to HR.
const DefaultEscalationWindow = 48 * time.Hour

// Armer registers a cancellable escalation timer. Implemented by
// escalate.Scheduler.
type Armer interface {
	Arm(jobKey string, deadline time.Time)
}

type Intake struct {
	store    *store.TaskStore
	sched    Armer
	notifier notify.Notifier
	window   time.Duration
	log      *slog.Logger
}

func New(s *store.TaskStore, sched Armer, n notify.Notifier, window time.Duration, log *slog.Logger) *Intake {
	if window <= 0 {
		window = DefaultEscalationWindow
	}
	return &Intake{store: s, sched: sched, notifier: n, window: window, log: log}
}

// OnJobReceived handles one delivered job. Duplicate delivery is a no-op, not
// an error.
func (in *Intake) OnJobReceived(ctx context.Context, job engine.Job) error {
	role, err := in.roleFor(job)
	if err != nil {
		return err
	}
	if role == model.RoleNone {
		// Auto tier on the legacy generic task type: no human stage needed.
		in.log.Info("job requires no human review, dropping", "jobKey", job.JobKey, "taskType", job.TaskType)
		return nil
	}

	task := model.PendingTask{
		JobKey:             job.JobKey,
		ProcessInstanceKey: job.ProcessInstanceKey,
		Role:               role,
		Variables:          job.Variables,
		ReceivedAt:         time.Now().UTC(),
	}
	if role == model.RoleManager {
		deadline := task.ReceivedAt.Add(in.window)
		task.EscalationDeadline = &deadline
	}

	if !in.store.InsertIfAbsent(task) {
		in.log.Debug("duplicate job delivery dropped", "jobKey", job.JobKey)
		return nil
	}
	if task.EscalationDeadline != nil {
		in.sched.Arm(task.JobKey, *task.EscalationDeadline)
	}

	if err := in.notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindTaskAssigned,
		Requester: task.Variables.Requester,
		Role:      string(role),
	}); err != nil {
		in.log.Warn("assignment notification failed", "jobKey", job.JobKey, "error", err)
	}

	in.log.Info("pending task stored",
		"jobKey", task.JobKey,
		"processInstanceKey", task.ProcessInstanceKey,
		"role", role,
	)
	return nil
}

// SynthesizeHRStage creates the second-stage hr-approval task for a process
// instance whose manager stage was approved. The jobKey follows the engine's
// key format so completion routes back to the same instance.
func (in *Intake) SynthesizeHRStage(ctx context.Context, processInstanceKey string, vars model.LeaveRequest) error {
	return in.OnJobReceived(ctx, engine.Job{
		JobKey:             engine.NewJobKey(processInstanceKey, engine.TaskTypeHRApproval),
		ProcessInstanceKey: processInstanceKey,
		TaskType:           engine.TaskTypeHRApproval,
		Variables:          vars,
	})
}

func (in *Intake) roleFor(job engine.Job) (model.Role, error) {
	switch job.TaskType {
	case engine.TaskTypeManagerApproval:
		return model.RoleManager, nil
	case engine.TaskTypeHRApproval:
		return model.RoleHR, nil
	case engine.TaskTypeManualReview:
		d, err := routing.ValidateRequest(job.Variables)
		if err != nil {
			return "", fmt.Errorf("route generic job %s: %w", job.JobKey, err)
		}
		return d.InitialRole, nil
	default:
		return "", fmt.Errorf("unknown task type %q for job %s", job.TaskType, job.JobKey)
	}
}
