// Package httpapi exposes the task listings and the completion protocol over
// HTTP. Caller identity arrives in X-Reviewer / X-Reviewer-Role headers set by
// the upstream gateway; transport authentication is out of scope here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leave-approval-service/internal/approval"
	"leave-approval-service/internal/engine"
	"leave-approval-service/internal/model"
	"leave-approval-service/internal/routing"
	"leave-approval-service/internal/store"
)

type Server struct {
	store    *store.TaskStore
	protocol *approval.Protocol
	engine   engine.Engine
	log      *slog.Logger
}

func NewServer(s *store.TaskStore, p *approval.Protocol, eng engine.Engine, log *slog.Logger) *Server {
	return &Server{store: s, protocol: p, engine: eng, log: log}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/api/tasks", s.handleListTasks)
	r.Get("/api/tasks/history", s.handleListHistory)
	r.Post("/api/complete", s.handleComplete)
	r.Post("/api/retry-ack", s.handleRetryAck)
	r.Post("/api/start-process", s.handleStartProcess)
	r.Get("/api/dashboard", s.handleDashboard)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// callerRole reads the reviewing role the gateway authenticated. Empty means
// an unscoped (debug/admin) caller and sees everything.
func callerRole(r *http.Request) model.Role {
	return model.Role(r.Header.Get("X-Reviewer-Role"))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListPending(callerRole(r)))
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListCompleted(callerRole(r)))
}

type completeReq struct {
	JobKey   string     `json:"jobKey"`
	Approved bool       `json:"approved"`
	Comments string     `json:"comments"`
	Role     model.Role `json:"role"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobKey == "" {
		writeError(w, http.StatusBadRequest, "invalid body: {\"jobKey\":\"...\",\"approved\":true,\"comments\":\"...\",\"role\":\"manager\"}")
		return
	}
	role := req.Role
	if role == "" {
		role = callerRole(r)
	}

	completed, err := s.protocol.Complete(r.Context(), approval.Request{
		JobKey:   req.JobKey,
		Role:     role,
		Reviewer: r.Header.Get("X-Reviewer"),
		Approved: req.Approved,
		Comments: req.Comments,
	})
	if err != nil {
		s.writeCompleteError(w, req.JobKey, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task":    completed,
	})
}

func (s *Server) writeCompleteError(w http.ResponseWriter, jobKey string, err error) {
	var ackErr *model.EngineAckError
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, model.ErrTaskAlreadyCompleted):
		writeError(w, http.StatusConflict, "task already completed")
	case errors.Is(err, model.ErrForbidden):
		writeError(w, http.StatusForbidden, "role not authorized for this task")
	case errors.As(err, &ackErr):
		// The decision is recorded; only the engine ack is outstanding.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"message": "decision recorded but engine did not acknowledge; retry via /api/retry-ack",
			"jobKey":  ackErr.JobKey,
		})
	default:
		s.log.Error("completion failed", "jobKey", jobKey, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to complete task")
	}
}

type retryAckReq struct {
	JobKey string `json:"jobKey"`
}

func (s *Server) handleRetryAck(w http.ResponseWriter, r *http.Request) {
	var req retryAckReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobKey == "" {
		writeError(w, http.StatusBadRequest, "invalid body: {\"jobKey\":\"...\"}")
		return
	}
	if err := s.protocol.RetryAck(r.Context(), req.JobKey); err != nil {
		var ackErr *model.EngineAckError
		switch {
		case errors.Is(err, model.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, "no completed task for job key")
		case errors.As(err, &ackErr):
			writeError(w, http.StatusBadGateway, "engine still not acknowledging")
		default:
			writeError(w, http.StatusInternalServerError, "retry failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	var req model.LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid leave request body")
		return
	}
	if req.Requester == "" {
		req.Requester = "Anonymous"
	}

	if _, err := routing.ValidateRequest(req); err != nil {
		var invalid *model.InvalidRequestError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Reason)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pik, err := s.engine.StartProcess(r.Context(), req)
	if err != nil {
		s.log.Error("process start failed", "requester", req.Requester, "error", err)
		writeError(w, http.StatusBadGateway, "failed to start process")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"processInstanceKey": pik,
		"message":            "Leave request submitted successfully",
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}
