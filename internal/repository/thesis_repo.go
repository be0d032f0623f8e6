package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/models"
)

// ErrStaleUpdate is returned when a conditional update matched no rows: the
// record changed (or vanished) between read and write. Services map it onto
// a ConflictError.
var ErrStaleUpdate = errors.New("conditional update matched no rows")

// ThesisRepository defines persistence for theses. Every status transition
// goes through Transition so the compare-and-swap discipline cannot be
// bypassed at a call site.
type ThesisRepository interface {
	Create(ctx context.Context, thesis *models.Thesis) error
	GetByID(ctx context.Context, id uint) (models.Thesis, error)
	GetByStudent(ctx context.Context, studentID uint) (models.Thesis, error)
	ListByReviewer(ctx context.Context, reviewerID uint, statuses []models.ThesisStatus) ([]models.Thesis, error)

	// Transition applies updates to the thesis row only while its status
	// still equals from. A concurrent transition that got there first
	// surfaces as ErrStaleUpdate.
	Transition(ctx context.Context, thesisID uint, from models.ThesisStatus, updates map[string]interface{}) error

	// TransitionWithHistory runs Transition, appends an iteration snapshot
	// and optionally clears the live assessment, all in one transaction,
	// so a reopened thesis can never lose its history to a half-applied
	// update.
	TransitionWithHistory(ctx context.Context, thesisID uint, from models.ThesisStatus, updates map[string]interface{}, iteration *models.ReviewIteration, clearAssessment bool) error

	// ApplyPlagiarismResult persists an oracle outcome conditionally on
	// the attempt counter observed before the oracle call, incrementing
	// it exactly once even under concurrent duplicate submissions.
	ApplyPlagiarismResult(ctx context.Context, thesisID uint, observedAttempts int, updates map[string]interface{}) error

	SaveAssessment(ctx context.Context, assessment *models.Assessment) error
}

type thesisRepository struct {
	db *gorm.DB
}

// NewThesisRepository instantiates the repository.
func NewThesisRepository(db *gorm.DB) ThesisRepository {
	return &thesisRepository{db: db}
}

func (r *thesisRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Thesis{}).
		Preload("Assessment").
		Preload("Student").
		Preload("ReviewIterations", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("iteration ASC, created_at ASC")
		})
}

func (r *thesisRepository) Create(ctx context.Context, thesis *models.Thesis) error {
	return r.db.WithContext(ctx).Create(thesis).Error
}

func (r *thesisRepository) GetByID(ctx context.Context, id uint) (models.Thesis, error) {
	var thesis models.Thesis
	if err := r.baseQuery(ctx).First(&thesis, id).Error; err != nil {
		return models.Thesis{}, err
	}
	return thesis, nil
}

func (r *thesisRepository) GetByStudent(ctx context.Context, studentID uint) (models.Thesis, error) {
	var thesis models.Thesis
	if err := r.baseQuery(ctx).Where("student_id = ?", studentID).First(&thesis).Error; err != nil {
		return models.Thesis{}, err
	}
	return thesis, nil
}

func (r *thesisRepository) ListByReviewer(ctx context.Context, reviewerID uint, statuses []models.ThesisStatus) ([]models.Thesis, error) {
	query := r.baseQuery(ctx).Where("assigned_reviewer_id = ?", reviewerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var theses []models.Thesis
	if err := query.Order("updated_at DESC").Find(&theses).Error; err != nil {
		return nil, err
	}
	return theses, nil
}

func (r *thesisRepository) Transition(ctx context.Context, thesisID uint, from models.ThesisStatus, updates map[string]interface{}) error {
	return r.transition(r.db.WithContext(ctx), thesisID, from, updates)
}

func (r *thesisRepository) transition(tx *gorm.DB, thesisID uint, from models.ThesisStatus, updates map[string]interface{}) error {
	result := tx.Model(&models.Thesis{}).
		Where("id = ?", thesisID).
		Where("status = ?", from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleUpdate
	}
	return nil
}

func (r *thesisRepository) TransitionWithHistory(ctx context.Context, thesisID uint, from models.ThesisStatus, updates map[string]interface{}, iteration *models.ReviewIteration, clearAssessment bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.transition(tx, thesisID, from, updates); err != nil {
			return err
		}
		if iteration != nil {
			if err := tx.Create(iteration).Error; err != nil {
				return err
			}
		}
		if clearAssessment {
			if err := tx.Where("thesis_id = ?", thesisID).Delete(&models.Assessment{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *thesisRepository) ApplyPlagiarismResult(ctx context.Context, thesisID uint, observedAttempts int, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Thesis{}).
		Where("id = ?", thesisID).
		Where("plagiarism_attempts = ?", observedAttempts).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleUpdate
	}
	return nil
}

func (r *thesisRepository) SaveAssessment(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Save(assessment).Error
}
