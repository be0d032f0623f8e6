package models

import "time"

// Assignment is a ledger entry binding one reviewing principal to one thesis
// for one role slot. The unique index on (thesis_id, role_slot) is what makes
// the binding exclusive: concurrent inserts for the same slot cannot both
// commit, so exactly one assigner wins the race.
type Assignment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ThesisID   uint      `gorm:"not null;uniqueIndex:idx_thesis_slot" json:"thesis_id"`
	RoleSlot   RoleSlot  `gorm:"size:32;not null;uniqueIndex:idx_thesis_slot" json:"role_slot"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	AssignedBy uint      `gorm:"not null" json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`

	Thesis Thesis `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"thesis"`
	User   User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
}
