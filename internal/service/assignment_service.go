package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/observability"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
)

// AssignmentService binds reviewing principals to theses through the
// exclusive ledger.
type AssignmentService interface {
	Assign(ctx context.Context, principal Principal, payload dto.AssignRequest) (dto.ThesisResponse, error)
	Reassign(ctx context.Context, principal Principal, payload dto.AssignRequest) (dto.ThesisResponse, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	theses      repository.ThesisRepository
	users       repository.UserRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	workload    WorkloadInvalidator
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAssignmentService constructs the assignment service.
func NewAssignmentService(assignments repository.AssignmentRepository, theses repository.ThesisRepository, users repository.UserRepository, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, workload WorkloadInvalidator, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		theses:      theses,
		users:       users,
		validator:   validate,
		activity:    activity,
		events:      events,
		workload:    workload,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		tracer:      otel.Tracer("github.com/akademia-dev/thesis-review-api/internal/service/assignment"),
		now:         time.Now,
	}
}

func (s *assignmentService) Assign(ctx context.Context, principal Principal, payload dto.AssignRequest) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.assign")
	span.SetAttributes(
		attribute.Int64("assignment.thesis_id", int64(payload.ThesisID)),
		attribute.String("assignment.role_slot", payload.RoleSlot),
	)
	defer span.End()

	slot, thesis, err := s.prepare(ctx, principal, payload)
	if err != nil {
		return dto.ThesisResponse{}, err
	}

	if slot == models.SlotReviewer && !thesis.HasFile() {
		observability.TransitionRejections().WithLabelValues("assignment_no_document").Inc()
		return dto.ThesisResponse{}, ErrNoFileUploaded
	}

	if thesis.SlotOccupant(slot) != nil {
		observability.AssignmentConflicts().Inc()
		return dto.ThesisResponse{}, ErrSlotOccupied
	}

	from, to := slotTransition(slot, thesis.Status)
	if to == "" {
		observability.TransitionRejections().WithLabelValues("assignment_wrong_stage").Inc()
		return dto.ThesisResponse{}, &ConflictError{Expected: from}
	}

	entry := &models.Assignment{
		ThesisID:   thesis.ID,
		RoleSlot:   slot,
		UserID:     payload.UserID,
		AssignedBy: principal.ID,
	}
	if err := s.assignments.Assign(ctx, entry, thesis.Status, to); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			observability.AssignmentConflicts().Inc()
			return dto.ThesisResponse{}, ErrSlotOccupied
		}
		return dto.ThesisResponse{}, err
	}

	s.recordAssignment(ctx, principal, thesis, slot, payload.UserID, thesis.Status, to, "assignment.created")

	return s.snapshot(ctx, thesis.ID)
}

func (s *assignmentService) Reassign(ctx context.Context, principal Principal, payload dto.AssignRequest) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.reassign")
	span.SetAttributes(
		attribute.Int64("assignment.thesis_id", int64(payload.ThesisID)),
		attribute.String("assignment.role_slot", payload.RoleSlot),
	)
	defer span.End()

	slot, thesis, err := s.prepare(ctx, principal, payload)
	if err != nil {
		return dto.ThesisResponse{}, err
	}

	previous := thesis.SlotOccupant(slot)
	if previous == nil {
		return dto.ThesisResponse{}, ErrSlotVacant
	}
	if *previous == payload.UserID {
		// Already bound to the requested principal.
		return dto.NewThesisResponse(thesis), nil
	}

	entry := &models.Assignment{
		ThesisID:   thesis.ID,
		RoleSlot:   slot,
		UserID:     payload.UserID,
		AssignedBy: principal.ID,
	}
	if err := s.assignments.Reassign(ctx, entry, *previous); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			observability.AssignmentConflicts().Inc()
			return dto.ThesisResponse{}, &ConflictError{Expected: thesis.Status, Resource: "assignment"}
		}
		return dto.ThesisResponse{}, err
	}

	s.recordAssignment(ctx, principal, thesis, slot, payload.UserID, thesis.Status, thesis.Status, "assignment.replaced")
	if s.workload != nil && slot == models.SlotReviewer {
		s.workload.Invalidate(ctx, *previous)
	}

	return s.snapshot(ctx, thesis.ID)
}

// prepare runs the guards shared by Assign and Reassign: caller may assign,
// payload is well formed, the target user holds the approved role matching
// the slot, and the thesis exists.
func (s *assignmentService) prepare(ctx context.Context, principal Principal, payload dto.AssignRequest) (models.RoleSlot, models.Thesis, error) {
	if !principal.Role.CanAssign() {
		return "", models.Thesis{}, &AuthorizationError{Role: principal.Role, Action: "assign a thesis"}
	}
	if err := s.validator.Struct(payload); err != nil {
		return "", models.Thesis{}, err
	}

	slot, ok := models.ParseRoleSlot(payload.RoleSlot)
	if !ok {
		return "", models.Thesis{}, NewValidationError("role_slot")
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", models.Thesis{}, ErrUserNotFound
		}
		return "", models.Thesis{}, err
	}
	if user.Role != slot.Role() {
		return "", models.Thesis{}, &ValidationError{MissingFields: []string{"user_id (role " + user.Role.String() + " cannot fill slot " + slot.String() + ")"}}
	}
	if !user.IsApproved {
		return "", models.Thesis{}, &ValidationError{MissingFields: []string{"user_id (account pending approval)"}}
	}

	thesis, err := s.theses.GetByID(ctx, payload.ThesisID)
	if err != nil {
		return "", models.Thesis{}, mapStorageErr(err, "")
	}
	return slot, thesis, nil
}

// slotTransition returns the status move an assignment implies. Filling the
// reviewer slot is what moves a thesis into the review stage; consultant and
// supervisor slots drive the optional pre-review stages.
func slotTransition(slot models.RoleSlot, current models.ThesisStatus) (models.ThesisStatus, models.ThesisStatus) {
	switch slot {
	case models.SlotConsultant:
		if current == models.StatusSubmitted {
			return current, models.StatusWithConsultant
		}
		return models.StatusSubmitted, ""
	case models.SlotSupervisor:
		if current == models.StatusWithConsultant {
			return current, models.StatusWithSupervisor
		}
		return models.StatusWithConsultant, ""
	default:
		if current == models.StatusSubmitted || current == models.StatusWithSupervisor {
			return current, models.StatusAssigned
		}
		return models.StatusSubmitted, ""
	}
}

func (s *assignmentService) recordAssignment(ctx context.Context, principal Principal, thesis models.Thesis, slot models.RoleSlot, userID uint, from, to models.ThesisStatus, action string) {
	if from != to {
		observability.Transitions().WithLabelValues(from.String(), to.String()).Inc()
	}

	if s.activity != nil {
		id := thesis.ID
		_ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    principal.ID,
			ActorRole:  principal.Role,
			Action:     action,
			EntityType: "thesis",
			EntityID:   &id,
			Metadata: map[string]interface{}{
				"role_slot": slot.String(),
				"user_id":   userID,
			},
		})
	}

	s.events.Publish(ctx, WorkflowEvent{
		Event:     "assigned." + slot.String(),
		ThesisID:  thesis.ID,
		From:      from,
		To:        to,
		ActorID:   principal.ID,
		ActorRole: principal.Role,
		Iteration: thesis.CurrentIteration,
	})

	if s.workload != nil && slot == models.SlotReviewer {
		s.workload.Invalidate(ctx, userID)
	}
}

func (s *assignmentService) snapshot(ctx context.Context, thesisID uint) (dto.ThesisResponse, error) {
	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	return dto.NewThesisResponse(thesis), nil
}
