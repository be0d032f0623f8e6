package models

import "strings"

// Role is the closed set of principal roles known to the workflow engine.
// The engine dispatches on the typed value; raw strings from tokens are
// normalized through ParseRole before they reach any service.
type Role string

const (
	RoleStudent          Role = "student"
	RoleConsultant       Role = "consultant"
	RoleSupervisor       Role = "supervisor"
	RoleReviewer         Role = "reviewer"
	RoleHeadOfDepartment Role = "head_of_department"
	RoleDean             Role = "dean"
	RoleAdmin            Role = "admin"
)

// ParseRole normalizes a raw role string into a Role, returning false when
// the value is not part of the closed set.
func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", false
	}
	return role, true
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleConsultant, RoleSupervisor, RoleReviewer,
		RoleHeadOfDepartment, RoleDean, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// CanSubmitThesis reports whether the role may create or resubmit a thesis.
func (r Role) CanSubmitThesis() bool {
	return r == RoleStudent
}

// CanReview reports whether the role may fill a rubric and grade a thesis.
func (r Role) CanReview() bool {
	return r == RoleReviewer
}

// CanRequestRevisions reports whether the role may kick a thesis back to the
// student for corrections.
func (r Role) CanRequestRevisions() bool {
	switch r {
	case RoleConsultant, RoleSupervisor, RoleReviewer:
		return true
	}
	return false
}

// CanAssign reports whether the role may bind reviewing parties to theses.
func (r Role) CanAssign() bool {
	switch r {
	case RoleAdmin, RoleHeadOfDepartment, RoleDean:
		return true
	}
	return false
}

// CanTriggerReReview reports whether the role may reopen a graded thesis.
func (r Role) CanTriggerReReview() bool {
	return r == RoleAdmin || r == RoleReviewer
}

// CanOverridePlagiarism reports whether the role may approve a thesis whose
// plagiarism attempt budget is exhausted.
func (r Role) CanOverridePlagiarism() bool {
	return r == RoleAdmin
}

// IsReviewingRole reports whether the role may occupy an assignment slot.
func (r Role) IsReviewingRole() bool {
	switch r {
	case RoleConsultant, RoleSupervisor, RoleReviewer:
		return true
	}
	return false
}

// RoleSlot names the assignment slot a reviewing principal occupies on a
// thesis. Each slot holds at most one principal at a time.
type RoleSlot string

const (
	SlotReviewer   RoleSlot = "reviewer"
	SlotConsultant RoleSlot = "consultant"
	SlotSupervisor RoleSlot = "supervisor"
)

// ParseRoleSlot normalizes a raw slot string.
func ParseRoleSlot(raw string) (RoleSlot, bool) {
	slot := RoleSlot(strings.ToLower(strings.TrimSpace(raw)))
	switch slot {
	case SlotReviewer, SlotConsultant, SlotSupervisor:
		return slot, true
	}
	return "", false
}

func (s RoleSlot) String() string {
	return string(s)
}

// Role returns the principal role that may occupy the slot.
func (s RoleSlot) Role() Role {
	switch s {
	case SlotConsultant:
		return RoleConsultant
	case SlotSupervisor:
		return RoleSupervisor
	default:
		return RoleReviewer
	}
}
