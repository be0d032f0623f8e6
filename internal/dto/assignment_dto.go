package dto

import (
	"time"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// AssignRequest binds a reviewing principal to a thesis slot. The same
// payload drives assign and reassign; the verb decides whether an existing
// binding is a conflict or the thing being replaced.
type AssignRequest struct {
	ThesisID uint   `json:"thesis_id" validate:"required,gt=0"`
	RoleSlot string `json:"role_slot" validate:"required,oneof=reviewer consultant supervisor"`
	UserID   uint   `json:"user_id" validate:"required,gt=0"`
}

// AssignmentResponse serializes one ledger entry.
type AssignmentResponse struct {
	ThesisID   uint            `json:"thesis_id"`
	RoleSlot   models.RoleSlot `json:"role_slot"`
	UserID     uint            `json:"user_id"`
	AssignedBy uint            `json:"assigned_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewAssignmentResponse converts a ledger entry into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ThesisID:   model.ThesisID,
		RoleSlot:   model.RoleSlot,
		UserID:     model.UserID,
		AssignedBy: model.AssignedBy,
		CreatedAt:  model.CreatedAt,
	}
}
