package main

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leave-approval-service/internal/approval"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/store"
)

type uiServer struct {
	store    *store.TaskStore
	protocol *approval.Protocol
	t        *template.Template
}

type uiIndexData struct {
	Tab     string
	Role    string
	Tasks   []model.PendingTask
	History []model.CompletedTask
	Error   string
}

func registerUIRoutes(r chi.Router, s *store.TaskStore, p *approval.Protocol) {
	t := template.Must(template.New("base").Parse(uiTemplates))
	u := &uiServer{store: s, protocol: p, t: t}

	r.Get("/ui", u.handleIndex)
	r.Post("/ui/decision", u.handleDecision)
}

func (u *uiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab != "history" {
		tab = "tasks"
	}
	role := model.Role(r.URL.Query().Get("role"))

	data := uiIndexData{Tab: tab, Role: string(role), Error: r.URL.Query().Get("err")}
	if tab == "tasks" {
		data.Tasks = u.store.ListPending(role)
	} else {
		data.History = u.store.ListCompleted(role)
	}
	_ = u.t.ExecuteTemplate(w, "index", data)
}

func (u *uiServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	// jobKeys contain path separators, so the form carries the key instead of
	// the URL.
	jobKey := r.FormValue("jobKey")
	if jobKey == "" {
		http.Redirect(w, r, "/ui?err="+template.URLQueryEscaper("missing job key"), http.StatusSeeOther)
		return
	}
	reviewer := r.FormValue("reviewer")
	if reviewer == "" {
		reviewer = "ops-agent"
	}

	_, err := u.protocol.Complete(r.Context(), approval.Request{
		JobKey:   jobKey,
		Role:     model.Role(r.FormValue("role")),
		Reviewer: reviewer,
		Approved: r.FormValue("approved") == "true",
		Comments: r.FormValue("comments"),
	})
	if err != nil {
		var ackErr *model.EngineAckError
		switch {
		case errors.Is(err, model.ErrTaskNotFound),
			errors.Is(err, model.ErrTaskAlreadyCompleted),
			errors.Is(err, model.ErrForbidden),
			errors.As(err, &ackErr):
			http.Redirect(w, r, "/ui?err="+template.URLQueryEscaper(err.Error()), http.StatusSeeOther)
		default:
			slog.Error("ui decision failed", "jobKey", jobKey, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	http.Redirect(w, r, "/ui", http.StatusSeeOther)
}

// uiTemplates contains the HTML for the ops dashboard. In a real application
// these would be separate .html files.
const uiTemplates = `
{{define "index"}}
<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Leave Approval</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    .tabs a { margin-right: 12px; }
    table { border-collapse: collapse; width: 100%; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 8px; }
    .err { color: #b00020; }
    .muted { color: #666; }
  </style>
</head>
<body>
  <h2>Leave Approval Review Queue</h2>

  <div class="tabs">
    <a href="/ui?tab=tasks">Pending</a>
    <a href="/ui?tab=history">History</a>
  </div>

  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}

  {{if eq .Tab "tasks"}}
    <h3>Pending Tasks</h3>
    <p class="muted">Oldest first. Decisions post straight to the completion protocol.</p>
    <table>
      <thead><tr><th>Requester</th><th>Type</th><th>Days</th><th>Reason</th><th>Role</th><th>Deadline</th><th>Decision</th></tr></thead>
      <tbody>
      {{range .Tasks}}
        <tr>
          <td>{{.Variables.Requester}}</td>
          <td>{{.Variables.LeaveType}}</td>
          <td>{{.Variables.Days}}</td>
          <td>{{.Variables.Reason}}</td>
          <td>{{.Role}}</td>
          <td>{{if .EscalationDeadline}}{{.EscalationDeadline.Format "2006-01-02 15:04"}}{{else}}-{{end}}</td>
          <td>
            <form method="post" action="/ui/decision">
              <input type="hidden" name="jobKey" value="{{.JobKey}}"/>
              <input type="hidden" name="role" value="{{.Role}}"/>
              <input name="reviewer" placeholder="reviewer" size="10"/>
              <input name="comments" placeholder="comments" size="16"/>
              <button name="approved" value="true" type="submit">Approve</button>
              <button name="approved" value="false" type="submit">Reject</button>
            </form>
          </td>
        </tr>
      {{end}}
      </tbody>
    </table>
  {{else}}
    <h3>Completed Tasks</h3>
    <p class="muted">Most recent first.</p>
    <table>
      <thead><tr><th>Requester</th><th>Type</th><th>Days</th><th>Role</th><th>Outcome</th><th>By</th><th>At</th><th>Comments</th></tr></thead>
      <tbody>
      {{range .History}}
        <tr>
          <td>{{.Variables.Requester}}</td>
          <td>{{.Variables.LeaveType}}</td>
          <td>{{.Variables.Days}}</td>
          <td>{{.Role}}</td>
          <td>{{if .Approved}}approved{{else}}rejected{{end}}</td>
          <td>{{.CompletedBy}}</td>
          <td>{{.CompletedAt.Format "2006-01-02 15:04"}}</td>
          <td>{{.Comments}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
  {{end}}
</body>
</html>
{{end}}
`
