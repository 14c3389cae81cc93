package model

import "time"

// DateLayout is the wire format for leave dates.
const DateLayout = "2006-01-02"

// LeaveRequest is the payload carried by every job of one process instance.
// It is immutable after intake.
type LeaveRequest struct {
	Requester      string    `json:"requester"`
	RequesterEmail string    `json:"requesterEmail,omitempty"`
	Reason         string    `json:"reason"`
	Days           int       `json:"days"`
	LeaveType      LeaveType `json:"leaveType"`
	StartDate      string    `json:"startDate,omitempty"`
	EndDate        string    `json:"endDate,omitempty"`
}

// HasValidDates reports whether both dates are present, parse, and are ordered.
func (r LeaveRequest) HasValidDates() bool {
	if r.StartDate == "" || r.EndDate == "" {
		return false
	}
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return false
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return false
	}
	return !end.Before(start)
}
