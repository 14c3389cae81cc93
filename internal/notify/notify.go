// Package notify is the one-way notification collaborator. Delivery is
// fire-and-forget: failures are logged by callers and never affect task state.
package notify

import (
	"context"
	"log/slog"
)

type Kind string

const (
	KindTaskAssigned Kind = "task_assigned"
	KindDecision     Kind = "decision"
	KindEscalated    Kind = "escalated"
	KindAutoApproved Kind = "auto_approved"
)

// Event describes one notification.
type Event struct {
	Kind      Kind   `json:"kind"`
	Requester string `json:"requester"`
	Role      string `json:"role,omitempty"`
	Approved  bool   `json:"approved"`
	Comments  string `json:"comments,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// LogNotifier writes notifications to the log. Used when no SMTP host is
// configured and as the default in tests.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Log.Info("notification",
		"kind", ev.Kind,
		"requester", ev.Requester,
		"role", ev.Role,
		"approved", ev.Approved,
	)
	return nil
}
