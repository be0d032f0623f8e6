package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// AssignmentRepository maintains the exclusive binding ledger between
// reviewing principals and theses. The thesis slot column and the ledger row
// always change inside one transaction: a half-applied assignment is an
// invariant violation the storage layer prevents, not the caller.
type AssignmentRepository interface {
	// Assign inserts the ledger row and fills the thesis slot, optionally
	// moving the thesis status in the same unit. Fails with ErrStaleUpdate
	// when the slot is already occupied or the status moved concurrently.
	Assign(ctx context.Context, entry *models.Assignment, fromStatus, toStatus models.ThesisStatus) error

	// Reassign atomically replaces the previous ledger row for the slot
	// and swaps the thesis slot reference from the old principal to the
	// new one.
	Reassign(ctx context.Context, entry *models.Assignment, previousUserID uint) error

	GetSlot(ctx context.Context, thesisID uint, slot models.RoleSlot) (models.Assignment, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates the ledger repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func slotColumn(slot models.RoleSlot) string {
	switch slot {
	case models.SlotConsultant:
		return "assigned_consultant_id"
	case models.SlotSupervisor:
		return "assigned_supervisor_id"
	default:
		return "assigned_reviewer_id"
	}
}

func (r *assignmentRepository) Assign(ctx context.Context, entry *models.Assignment, fromStatus, toStatus models.ThesisStatus) error {
	column := slotColumn(entry.RoleSlot)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The unique index on (thesis_id, role_slot) turns the losing
		// side of a concurrent assign into a constraint violation.
		if err := tx.Create(entry).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrStaleUpdate
			}
			return err
		}

		updates := map[string]interface{}{column: entry.UserID}
		if toStatus != "" {
			updates["status"] = toStatus
		}

		update := tx.Model(&models.Thesis{}).
			Where("id = ?", entry.ThesisID).
			Where(column + " IS NULL")
		if fromStatus != "" {
			update = update.Where("status = ?", fromStatus)
		}

		result := update.Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleUpdate
		}
		return nil
	})
}

func (r *assignmentRepository) Reassign(ctx context.Context, entry *models.Assignment, previousUserID uint) error {
	column := slotColumn(entry.RoleSlot)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removal := tx.Where("thesis_id = ?", entry.ThesisID).
			Where("role_slot = ?", entry.RoleSlot).
			Where("user_id = ?", previousUserID).
			Delete(&models.Assignment{})
		if removal.Error != nil {
			return removal.Error
		}
		if removal.RowsAffected == 0 {
			return ErrStaleUpdate
		}

		if err := tx.Create(entry).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrStaleUpdate
			}
			return err
		}

		result := tx.Model(&models.Thesis{}).
			Where("id = ?", entry.ThesisID).
			Where(column+" = ?", previousUserID).
			Update(column, entry.UserID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleUpdate
		}
		return nil
	})
}

func (r *assignmentRepository) GetSlot(ctx context.Context, thesisID uint, slot models.RoleSlot) (models.Assignment, error) {
	var entry models.Assignment
	if err := r.db.WithContext(ctx).
		Where("thesis_id = ?", thesisID).
		Where("role_slot = ?", slot).
		First(&entry).Error; err != nil {
		return models.Assignment{}, err
	}
	return entry, nil
}

func (r *assignmentRepository) ListByUser(ctx context.Context, userID uint) ([]models.Assignment, error) {
	var entries []models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("Thesis").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// isUniqueViolation matches the driver-specific duplicate-key errors for
// postgres (23505) and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "23505")
}
