package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leave-approval-service/internal/approval"
	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/escalate"
	"leave-approval-service/internal/intake"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/notify"
	"leave-approval-service/internal/store"
)

type uiStubEngine struct{}

func (uiStubEngine) Subscribe(string, engine.Handler) {}

func (uiStubEngine) CompleteJob(context.Context, string, map[string]any) error { return nil }

func (uiStubEngine) StartProcess(context.Context, model.LeaveRequest) (string, error) {
	return "leave-1", nil
}

func newUITestRouter(t *testing.T) (*chi.Mux, *store.TaskStore) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := &notify.LogNotifier{Log: log}
	s := store.New()
	sched := escalate.NewScheduler(s, n, log)
	t.Cleanup(sched.Stop)
	in := intake.New(s, sched, n, 48*time.Hour, log)
	p := approval.New(s, sched, uiStubEngine{}, n, in, log)

	r := chi.NewRouter()
	registerUIRoutes(r, s, p)
	return r, s
}

func postForm(t *testing.T, r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// jobKeys embed the processInstanceKey with path separators, so the decision
// form must round-trip them through a form field rather than the URL path.
func TestUIDecision_CompletesTask(t *testing.T) {
	r, s := newUITestRouter(t)
	jobKey := engine.NewJobKey("leave-1", engine.TaskTypeManagerApproval)
	require.True(t, s.InsertIfAbsent(model.PendingTask{
		JobKey:             jobKey,
		ProcessInstanceKey: "leave-1",
		Role:               model.RoleManager,
		Variables: model.LeaveRequest{
			Requester: "Jane Smith",
			Days:      7,
			LeaveType: model.LeaveVacation,
		},
		ReceivedAt: time.Now().UTC(),
	}))

	w := postForm(t, r, "/ui/decision", url.Values{
		"jobKey":   {jobKey},
		"role":     {"manager"},
		"reviewer": {"alice"},
		"approved": {"true"},
		"comments": {"ok"},
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/ui", w.Header().Get("Location"))

	done, err := s.FindCompleted(jobKey)
	require.NoError(t, err)
	assert.True(t, done.Approved)
	assert.Equal(t, "alice", done.CompletedBy)
}

func TestUIDecision_MissingJobKey(t *testing.T) {
	r, _ := newUITestRouter(t)

	w := postForm(t, r, "/ui/decision", url.Values{"role": {"manager"}, "approved": {"true"}})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "err=")
}

func TestUIDecision_UnknownJobKeyRedirectsWithError(t *testing.T) {
	r, _ := newUITestRouter(t)

	w := postForm(t, r, "/ui/decision", url.Values{
		"jobKey":   {"leave-9/manager-approval/zz"},
		"role":     {"manager"},
		"approved": {"true"},
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "err=")
}
