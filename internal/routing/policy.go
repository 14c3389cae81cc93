// Package routing decides which approval tier a leave request goes through.
// Decide is a pure function and may be called concurrently without
// coordination; it is the single authoritative business rule for review
// routing, evaluated once at intake and once by the process definition's
// validation gateway.
package routing

import (
	"fmt"

	"leave-approval-service/internal/model"
)

const (
	maxDays            = 365
	datesRequiredAbove = 5
	managerOnlyMaxDays = 10
	autoPersonalDays   = 3
)

// Decision is derived, never stored.
type Decision struct {
	Tier        model.Tier
	InitialRole model.Role
}

// Decide maps a request's attributes to a review tier and initial role.
func Decide(days int, leaveType model.LeaveType, hasValidDates bool) (Decision, error) {
	switch {
	case days <= 0:
		return Decision{}, &model.InvalidRequestError{Reason: "days must be a positive integer"}
	case days > maxDays:
		return Decision{}, &model.InvalidRequestError{Reason: fmt.Sprintf("days must not exceed %d", maxDays)}
	case !leaveType.Valid():
		return Decision{}, &model.InvalidRequestError{Reason: fmt.Sprintf("unrecognized leave type %q", leaveType)}
	case days > datesRequiredAbove && !hasValidDates:
		return Decision{}, &model.InvalidRequestError{Reason: fmt.Sprintf("start and end dates are required for more than %d days", datesRequiredAbove)}
	}

	if leaveType == model.LeavePersonal && days <= autoPersonalDays {
		return Decision{Tier: model.TierAuto, InitialRole: model.RoleNone}, nil
	}
	if days <= managerOnlyMaxDays && !leaveType.RequiresHR() {
		return Decision{Tier: model.TierManager, InitialRole: model.RoleManager}, nil
	}
	return Decision{Tier: model.TierManagerThenHR, InitialRole: model.RoleManager}, nil
}

// ValidateRequest applies Decide to a full request, deriving date validity.
func ValidateRequest(req model.LeaveRequest) (Decision, error) {
	return Decide(req.Days, req.LeaveType, req.HasValidDates())
}
