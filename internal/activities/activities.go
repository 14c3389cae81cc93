// Package activities holds the worker-side activities of the leave approval
// process definition.
package activities

import (
	"context"
	"log/slog"

	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/notify"
)

// Dispatcher hands a delivered job to the subscribed handler. Implemented by
// engine.TemporalEngine.
type Dispatcher interface {
	Dispatch(ctx context.Context, job engine.Job) error
}

type Activities struct {
	Engine   Dispatcher
	Notifier notify.Notifier
	Log      *slog.Logger
}

// DeliverJob pushes one human-review job into the orchestration layer. The
// workflow's activity retry policy makes delivery at-least-once; intake
// deduplicates by jobKey.
func (a *Activities) DeliverJob(ctx context.Context, job engine.Job) error {
	a.Log.Info("delivering job", "jobKey", job.JobKey, "taskType", job.TaskType)
	return a.Engine.Dispatch(ctx, job)
}

// RecordAutoApproval marks an auto-tier request approved by the system and
// notifies the requester. No pending task is ever created for it.
func (a *Activities) RecordAutoApproval(ctx context.Context, req model.LeaveRequest) error {
	a.Log.Info("request auto-approved",
		"requester", req.Requester,
		"days", req.Days,
		"leaveType", req.LeaveType,
	)
	if err := a.Notifier.Notify(ctx, notify.Event{
		Kind:      notify.KindAutoApproved,
		Requester: req.Requester,
		Approved:  true,
	}); err != nil {
		a.Log.Warn("auto-approval notification failed", "requester", req.Requester, "error", err)
	}
	return nil
}

// UpdateCalendar records the approved leave in the team calendar. The calendar
// backend is a collaborator the core only signals; here it is the log.
func (a *Activities) UpdateCalendar(_ context.Context, req model.LeaveRequest) error {
	a.Log.Info("calendar updated",
		"requester", req.Requester,
		"startDate", req.StartDate,
		"endDate", req.EndDate,
		"days", req.Days,
	)
	return nil
}
