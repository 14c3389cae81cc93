package approval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/escalate"
	"leave-approval-service/internal/intake"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/notify"
	"leave-approval-service/internal/store"
)

type fakeEngine struct {
	mu        sync.Mutex
	completed map[string]map[string]any
	failAck   error
	calls     int
}

func (f *fakeEngine) Subscribe(string, engine.Handler) {}

func (f *fakeEngine) CompleteJob(_ context.Context, jobKey string, vars map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAck != nil {
		return f.failAck
	}
	if f.completed == nil {
		f.completed = make(map[string]map[string]any)
	}
	f.completed[jobKey] = vars
	return nil
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeEngine) StartProcess(context.Context, model.LeaveRequest) (string, error) {
	return "leave-1", nil
}

func (f *fakeEngine) sentVars(jobKey string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed[jobKey]
}

type recordNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordNotifier) byKind(kind notify.Kind) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	protocol *Protocol
	store    *store.TaskStore
	engine   *fakeEngine
	notifier *recordNotifier
	intake   *intake.Intake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := store.New()
	eng := &fakeEngine{}
	n := &recordNotifier{}
	sched := escalate.NewScheduler(s, n, log)
	t.Cleanup(sched.Stop)
	in := intake.New(s, sched, n, 48*time.Hour, log)
	return &fixture{
		protocol: New(s, sched, eng, n, in, log),
		store:    s,
		engine:   eng,
		notifier: n,
		intake:   in,
	}
}

func (f *fixture) addPending(t *testing.T, jobKey string, role model.Role, vars model.LeaveRequest) {
	t.Helper()
	require.True(t, f.store.InsertIfAbsent(model.PendingTask{
		JobKey:             jobKey,
		ProcessInstanceKey: "leave-1",
		Role:               role,
		Variables:          vars,
		ReceivedAt:         time.Now().UTC(),
	}))
}

func vacation(days int) model.LeaveRequest {
	return model.LeaveRequest{
		Requester: "Jane Smith",
		Reason:    "Annual vacation",
		Days:      days,
		LeaveType: model.LeaveVacation,
		StartDate: "2025-09-15",
		EndDate:   "2025-09-30",
	}
}

func TestComplete_ManagerApproves(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "leave-1/manager-approval/a1", model.RoleManager, vacation(7))

	done, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "leave-1/manager-approval/a1",
		Role:     model.RoleManager,
		Reviewer: "alice",
		Approved: true,
		Comments: "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", done.CompletedBy)
	assert.True(t, done.Approved)

	_, err = f.store.FindPending("leave-1/manager-approval/a1")
	assert.ErrorIs(t, err, model.ErrTaskNotFound)
	require.Len(t, f.store.ListCompleted(""), 1)

	vars := f.engine.sentVars("leave-1/manager-approval/a1")
	require.NotNil(t, vars)
	assert.Equal(t, true, vars["approvedByManager"])
	assert.Equal(t, "ok", vars["managerComments"])
	assert.Equal(t, "alice", vars["managerApprovedBy"])
	assert.NotEmpty(t, vars["managerApprovedAt"])
	assert.NotContains(t, vars, "approvedByHR")

	require.Eventually(t, func() bool {
		return len(f.notifier.byKind(notify.KindDecision)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// days=7 vacation is manager-only: no hr stage follows.
	assert.Empty(t, f.store.ListPending(model.RoleHR))
}

func TestComplete_HRVariableNames(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "leave-1/hr-approval/b2", model.RoleHR, vacation(12))

	_, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "leave-1/hr-approval/b2",
		Role:     model.RoleHR,
		Reviewer: "harriet",
		Approved: false,
		Comments: "coverage gap",
	})
	require.NoError(t, err)

	vars := f.engine.sentVars("leave-1/hr-approval/b2")
	require.NotNil(t, vars)
	assert.Equal(t, false, vars["approvedByHR"])
	assert.Equal(t, "coverage gap", vars["hrComments"])
	assert.Equal(t, "harriet", vars["hrApprovedBy"])
}

func TestComplete_UnknownJobKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.protocol.Complete(context.Background(), Request{JobKey: "nope", Role: model.RoleManager})
	assert.ErrorIs(t, err, model.ErrTaskNotFound)
}

func TestComplete_SecondDecisionConflicts(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "job-1", model.RoleManager, vacation(7))

	_, err := f.protocol.Complete(context.Background(), Request{JobKey: "job-1", Role: model.RoleManager, Approved: true})
	require.NoError(t, err)

	_, err = f.protocol.Complete(context.Background(), Request{JobKey: "job-1", Role: model.RoleManager, Approved: false})
	assert.ErrorIs(t, err, model.ErrTaskAlreadyCompleted)
	assert.Len(t, f.store.ListCompleted(""), 1)
}

func TestComplete_RoleMismatch(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "job-1", model.RoleManager, vacation(7))

	_, err := f.protocol.Complete(context.Background(), Request{JobKey: "job-1", Role: model.RoleHR, Approved: true})
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, ferr := f.store.FindPending("job-1")
	assert.NoError(t, ferr, "forbidden decision must not consume the task")
}

func TestComplete_AdminOverride(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "job-1", model.RoleManager, vacation(7))

	done, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "job-1",
		Role:     model.RoleAdmin,
		Reviewer: "root",
		Approved: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, done.Role, "override decides as the task's role")

	vars := f.engine.sentVars("job-1")
	require.NotNil(t, vars)
	assert.Equal(t, true, vars["approvedByManager"])
}

func TestComplete_EngineAckFailed(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "job-1", model.RoleManager, vacation(7))
	f.engine.failAck = errors.New("gateway unavailable")

	done, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "job-1",
		Role:     model.RoleManager,
		Reviewer: "alice",
		Approved: true,
	})

	var ackErr *model.EngineAckError
	require.ErrorAs(t, err, &ackErr)
	assert.Equal(t, "job-1", ackErr.JobKey)
	assert.Equal(t, "job-1", done.JobKey, "completed record is returned alongside the ack failure")

	// Local history is kept: the decision must not be re-askable.
	_, err = f.store.FindCompleted("job-1")
	require.NoError(t, err)
	_, err = f.protocol.Complete(context.Background(), Request{JobKey: "job-1", Role: model.RoleManager})
	assert.ErrorIs(t, err, model.ErrTaskAlreadyCompleted)

	// No decision notification went out for the unacknowledged completion.
	assert.Empty(t, f.notifier.byKind(notify.KindDecision))
}

func TestRetryAck(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "job-1", model.RoleManager, vacation(7))
	f.engine.failAck = errors.New("gateway unavailable")

	_, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "job-1",
		Role:     model.RoleManager,
		Reviewer: "alice",
		Approved: true,
		Comments: "ok",
	})
	var ackErr *model.EngineAckError
	require.ErrorAs(t, err, &ackErr)

	f.engine.mu.Lock()
	f.engine.failAck = nil
	f.engine.mu.Unlock()

	require.NoError(t, f.protocol.RetryAck(context.Background(), "job-1"))
	vars := f.engine.sentVars("job-1")
	require.NotNil(t, vars)
	assert.Equal(t, true, vars["approvedByManager"])
	assert.Equal(t, "alice", vars["managerApprovedBy"])

	assert.ErrorIs(t, f.protocol.RetryAck(context.Background(), "unknown"), model.ErrTaskNotFound)
}

func TestRetryAck_OpensHRStageAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	medical := model.LeaveRequest{
		Requester: "Bob Wilson",
		Reason:    "Medical procedure and recovery",
		Days:      15,
		LeaveType: model.LeaveMedical,
		StartDate: "2025-09-20",
		EndDate:   "2025-10-04",
	}
	f.addPending(t, "leave-1/manager-approval/c3", model.RoleManager, medical)
	f.engine.failAck = errors.New("gateway unavailable")

	_, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "leave-1/manager-approval/c3",
		Role:     model.RoleManager,
		Reviewer: "alice",
		Approved: true,
	})
	var ackErr *model.EngineAckError
	require.ErrorAs(t, err, &ackErr)
	assert.Empty(t, f.store.ListPending(model.RoleHR), "no hr stage while the ack is outstanding")

	f.engine.mu.Lock()
	f.engine.failAck = nil
	f.engine.mu.Unlock()

	// A recovered ack must still route the second stage.
	require.NoError(t, f.protocol.RetryAck(context.Background(), "leave-1/manager-approval/c3"))
	require.Len(t, f.store.ListPending(model.RoleHR), 1)

	calls := f.engine.callCount()
	require.NoError(t, f.protocol.RetryAck(context.Background(), "leave-1/manager-approval/c3"))
	assert.Equal(t, calls, f.engine.callCount(), "an acknowledged job must not be signalled again")
	assert.Len(t, f.store.ListPending(model.RoleHR), 1, "no duplicate hr task")
}

func TestComplete_ManagerApprovalOpensHRStage(t *testing.T) {
	f := newFixture(t)
	medical := model.LeaveRequest{
		Requester: "Bob Wilson",
		Reason:    "Medical procedure and recovery",
		Days:      15,
		LeaveType: model.LeaveMedical,
		StartDate: "2025-09-20",
		EndDate:   "2025-10-04",
	}
	f.addPending(t, "leave-1/manager-approval/c3", model.RoleManager, medical)

	_, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "leave-1/manager-approval/c3",
		Role:     model.RoleManager,
		Reviewer: "alice",
		Approved: true,
	})
	require.NoError(t, err)

	hrTasks := f.store.ListPending(model.RoleHR)
	require.Len(t, hrTasks, 1)
	assert.Equal(t, "leave-1", hrTasks[0].ProcessInstanceKey)
	assert.Equal(t, medical, hrTasks[0].Variables)
	assert.NotEqual(t, "leave-1/manager-approval/c3", hrTasks[0].JobKey)

	// Completing the hr stage sends the hr variable set.
	_, err = f.protocol.Complete(context.Background(), Request{
		JobKey:   hrTasks[0].JobKey,
		Role:     model.RoleHR,
		Reviewer: "harriet",
		Approved: true,
	})
	require.NoError(t, err)
	vars := f.engine.sentVars(hrTasks[0].JobKey)
	require.NotNil(t, vars)
	assert.Equal(t, true, vars["approvedByHR"])
}

func TestComplete_ManagerRejectionEndsWorkflow(t *testing.T) {
	f := newFixture(t)
	f.addPending(t, "job-1", model.RoleManager, model.LeaveRequest{
		Requester: "Bob Wilson",
		Days:      15,
		LeaveType: model.LeaveMedical,
		StartDate: "2025-09-20",
		EndDate:   "2025-10-04",
	})

	_, err := f.protocol.Complete(context.Background(), Request{
		JobKey:   "job-1",
		Role:     model.RoleManager,
		Approved: false,
	})
	require.NoError(t, err)
	assert.Empty(t, f.store.ListPending(""), "rejection is terminal, no hr stage")
}
