package model

import "time"

// PendingTask is a review stage waiting for a decision. JobKey is engine-issued
// and unique across pending and completed tasks.
type PendingTask struct {
	JobKey             string       `json:"jobKey"`
	ProcessInstanceKey string       `json:"processInstanceKey"`
	Role               Role         `json:"role"`
	Variables          LeaveRequest `json:"variables"`
	ReceivedAt         time.Time    `json:"receivedAt"`
	EscalationDeadline *time.Time   `json:"escalationDeadline,omitempty"`
}

// CompletedTask is the historical record written when a pending task is decided.
// AckedAt is nil while the engine has not acknowledged the completion.
type CompletedTask struct {
	PendingTask
	Approved    bool       `json:"approved"`
	CompletedBy string     `json:"completedBy"`
	Comments    string     `json:"comments,omitempty"`
	CompletedAt time.Time  `json:"completedAt"`
	AckedAt     *time.Time `json:"ackedAt,omitempty"`
}

// AuditEvent is one entry in a process instance's audit trail.
type AuditEvent struct {
	At      time.Time      `json:"at"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Decision captures a reviewer's outcome for one pending task.
type Decision struct {
	Approved  bool      `json:"approved"`
	DecidedBy string    `json:"decidedBy"`
	Role      Role      `json:"role"`
	Comments  string    `json:"comments,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
