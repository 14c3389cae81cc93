// Package escalate promotes unanswered manager-tier tasks to HR. One
// cancellable timer runs per armed jobKey; the store's atomic Reassign is the
// sole arbiter between a timer firing and a reviewer's completion, so a timer
// that loses the race simply observes not-found and stops.
package escalate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"leave-approval-service/internal/model"
	"leave-approval-service/internal/notify"
	"leave-approval-service/internal/store"
)

// Scheduler owns the per-jobKey escalation timers.
type Scheduler struct {
	store    *store.TaskStore
	notifier notify.Notifier
	log      *slog.Logger

	retry      Strategy
	maxRetries int

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func NewScheduler(s *store.TaskStore, n notify.Notifier, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:      s,
		notifier:   n,
		log:        log,
		retry:      Exponential{Initial: time.Second, Max: time.Minute},
		maxRetries: 5,
		timers:     make(map[string]*time.Timer),
	}
}

// Arm starts (or replaces) the escalation countdown for jobKey.
func (s *Scheduler) Arm(jobKey string, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[jobKey]; ok {
		t.Stop()
	}
	s.timers[jobKey] = time.AfterFunc(time.Until(deadline), func() {
		s.fire(jobKey)
	})
	s.log.Debug("escalation timer armed", "jobKey", jobKey, "deadline", deadline)
}

// Cancel disarms the timer for jobKey. It returns false if the timer already
// fired or was never armed; callers must tolerate that, since completion and
// firing can race and the store settles the winner either way.
func (s *Scheduler) Cancel(jobKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[jobKey]
	if !ok {
		return false
	}
	delete(s.timers, jobKey)
	return t.Stop()
}

// Stop disarms all timers and waits for in-flight escalations to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire(jobKey string) {
	s.mu.Lock()
	delete(s.timers, jobKey)
	stopped := s.stopped
	if !stopped {
		s.wg.Add(1)
	}
	s.mu.Unlock()
	if stopped {
		return
	}
	defer s.wg.Done()

	for attempt := 1; ; attempt++ {
		task, err := s.store.Reassign(jobKey, model.RoleManager, model.RoleHR)
		if err == nil {
			s.log.Info("task escalated to hr",
				"jobKey", jobKey,
				"processInstanceKey", task.ProcessInstanceKey,
			)
			if nerr := s.notifier.Notify(context.Background(), notify.Event{
				Kind:      notify.KindEscalated,
				Requester: task.Variables.Requester,
				Role:      string(model.RoleHR),
			}); nerr != nil {
				s.log.Warn("escalation notification failed", "jobKey", jobKey, "error", nerr)
			}
			return
		}
		if errors.Is(err, model.ErrTaskNotFound) || errors.Is(err, model.ErrTaskAlreadyCompleted) {
			// A completion won the arbitration on the store; nothing to do.
			s.log.Debug("escalation skipped, task already decided", "jobKey", jobKey)
			return
		}
		if attempt > s.maxRetries {
			s.log.Error("escalation abandoned after retries", "jobKey", jobKey, "attempts", attempt, "error", err)
			return
		}
		s.log.Warn("escalation attempt failed, retrying", "jobKey", jobKey, "attempt", attempt, "error", err)
		time.Sleep(s.retry.Delay(attempt))
	}
}
