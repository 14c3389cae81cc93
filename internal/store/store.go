// Package store holds pending and completed approval tasks behind a single
// lock. Its atomic remove operations are the arbitration point between a
// reviewer's completion and the escalation timer firing for the same jobKey.
package store

import (
	"sort"
	"sync"
	"time"

	"leave-approval-service/internal/model"
)

// TaskStore is an in-memory task collection safe for concurrent use.
type TaskStore struct {
	mu        sync.RWMutex
	pending   map[string]model.PendingTask
	completed map[string]model.CompletedTask
}

func New() *TaskStore {
	return &TaskStore{
		pending:   make(map[string]model.PendingTask),
		completed: make(map[string]model.CompletedTask),
	}
}

// InsertIfAbsent stores the task unless its jobKey already exists in the
// pending or completed set. Duplicate delivery is a no-op and returns false.
func (s *TaskStore) InsertIfAbsent(task model.PendingTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[task.JobKey]; ok {
		return false
	}
	if _, ok := s.completed[task.JobKey]; ok {
		return false
	}
	s.pending[task.JobKey] = task
	return true
}

// FindPending returns a copy of the pending task for jobKey.
func (s *TaskStore) FindPending(jobKey string) (model.PendingTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.pending[jobKey]
	if !ok {
		return model.PendingTask{}, model.ErrTaskNotFound
	}
	return t, nil
}

// FindCompleted returns a copy of the completed record for jobKey.
func (s *TaskStore) FindCompleted(jobKey string) (model.CompletedTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.completed[jobKey]
	if !ok {
		return model.CompletedTask{}, model.ErrTaskNotFound
	}
	return t, nil
}

// CompletePending atomically removes the task from the pending set and appends
// it to completed history. There is no window in which the task is absent from
// both sets or present in both. An already-decided jobKey returns
// ErrTaskAlreadyCompleted, distinct from an unknown one.
//
// asRole is the role the caller authorized the decision against; a task that
// escalated to a different role in the meantime reads as ErrTaskNotFound,
// mirroring Reassign's guard, so the stale decision loses the race.
func (s *TaskStore) CompletePending(jobKey string, asRole model.Role, d model.Decision) (model.CompletedTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.completed[jobKey]; ok {
		return model.CompletedTask{}, model.ErrTaskAlreadyCompleted
	}
	t, ok := s.pending[jobKey]
	if !ok || t.Role != asRole {
		return model.CompletedTask{}, model.ErrTaskNotFound
	}

	at := d.DecidedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	done := model.CompletedTask{
		PendingTask: t,
		Approved:    d.Approved,
		CompletedBy: d.DecidedBy,
		Comments:    d.Comments,
		CompletedAt: at,
	}
	delete(s.pending, jobKey)
	s.completed[jobKey] = done
	return done, nil
}

// MarkAcked records when the engine acknowledged the completion of jobKey.
func (s *TaskStore) MarkAcked(jobKey string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.completed[jobKey]
	if !ok {
		return model.ErrTaskNotFound
	}
	t.AckedAt = &at
	s.completed[jobKey] = t
	return nil
}

// Reassign atomically replaces the pending task for jobKey with a new entry
// under toRole. The original entry is removed without being counted as
// completed; the replacement keeps the variables and processInstanceKey,
// gets a fresh receivedAt, and carries no escalation deadline.
//
// A jobKey that was completed in the meantime returns ErrTaskAlreadyCompleted;
// one that is pending under a different role (or unknown) returns
// ErrTaskNotFound. Both mean the caller lost the race and must stop.
func (s *TaskStore) Reassign(jobKey string, fromRole, toRole model.Role) (model.PendingTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.completed[jobKey]; ok {
		return model.PendingTask{}, model.ErrTaskAlreadyCompleted
	}
	t, ok := s.pending[jobKey]
	if !ok || t.Role != fromRole {
		return model.PendingTask{}, model.ErrTaskNotFound
	}

	t.Role = toRole
	t.ReceivedAt = time.Now().UTC()
	t.EscalationDeadline = nil
	s.pending[jobKey] = t
	return t, nil
}

// ListPending returns pending tasks ordered by receivedAt ascending. An empty
// role or RoleAdmin returns all tasks.
func (s *TaskStore) ListPending(role model.Role) []model.PendingTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.PendingTask, 0, len(s.pending))
	for _, t := range s.pending {
		if role != "" && role != model.RoleAdmin && t.Role != role {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

// ListCompleted returns completed tasks, most recent first.
func (s *TaskStore) ListCompleted(role model.Role) []model.CompletedTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CompletedTask, 0, len(s.completed))
	for _, t := range s.completed {
		if role != "" && role != model.RoleAdmin && t.Role != role {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out
}

// Stats summarizes the store for the dashboard endpoint.
type Stats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
}

func (s *TaskStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Pending: len(s.pending), Completed: len(s.completed)}
	for _, t := range s.completed {
		if t.Approved {
			st.Approved++
		} else {
			st.Rejected++
		}
	}
	return st
}
