package model

// Role identifies who is expected to decide a pending task.
type Role string

const (
	RoleManager Role = "manager"
	RoleHR      Role = "hr"
	RoleAdmin   Role = "admin"
	RoleNone    Role = "none"
)

// Tier is the set of approval stages a request must pass through.
type Tier string

const (
	TierAuto          Tier = "auto"
	TierManager       Tier = "manager"
	TierManagerThenHR Tier = "manager_then_hr"
)

type LeaveType string

const (
	LeaveVacation  LeaveType = "vacation"
	LeaveSick      LeaveType = "sick"
	LeavePersonal  LeaveType = "personal"
	LeaveMaternity LeaveType = "maternity"
	LeavePaternity LeaveType = "paternity"
	LeaveMedical   LeaveType = "medical"
)

// Valid reports whether t is one of the recognized leave types.
func (t LeaveType) Valid() bool {
	switch t {
	case LeaveVacation, LeaveSick, LeavePersonal, LeaveMaternity, LeavePaternity, LeaveMedical:
		return true
	}
	return false
}

// RequiresHR reports whether requests of this type always need HR sign-off
// regardless of duration.
func (t LeaveType) RequiresHR() bool {
	switch t {
	case LeaveMedical, LeaveMaternity, LeavePaternity:
		return true
	}
	return false
}
