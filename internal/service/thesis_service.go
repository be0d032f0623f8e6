package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/observability"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
)

// ErrUploadTypeNotAllowed indicates the uploaded document is not a PDF.
var ErrUploadTypeNotAllowed = errors.New("only PDF documents are accepted")

// ThesisService manages thesis submission and the revision loop.
type ThesisService interface {
	SubmitTopic(ctx context.Context, principal Principal, payload dto.SubmitTopicRequest) (dto.ThesisResponse, error)
	SubmitThesis(ctx context.Context, principal Principal, title string, file *multipart.FileHeader) (dto.ThesisResponse, error)
	Resubmit(ctx context.Context, principal Principal, thesisID uint, file *multipart.FileHeader) (dto.ThesisResponse, error)
	Get(ctx context.Context, principal Principal, thesisID uint) (dto.ThesisResponse, error)
}

type thesisService struct {
	theses    repository.ThesisRepository
	storage   FileStorage
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	logger    zerolog.Logger
	tracer    trace.Tracer
	maxSize   int64
	now       func() time.Time
}

// NewThesisService constructs the thesis service.
func NewThesisService(theses repository.ThesisRepository, storage FileStorage, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, maxSizeMB int, logger zerolog.Logger) ThesisService {
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	return &thesisService{
		theses:    theses,
		storage:   storage,
		validator: validate,
		activity:  activity,
		events:    events,
		logger:    logger.With().Str("component", "thesis_service").Logger(),
		tracer:    otel.Tracer("github.com/akademia-dev/thesis-review-api/internal/service/thesis"),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		now:       time.Now,
	}
}

func (s *thesisService) SubmitTopic(ctx context.Context, principal Principal, payload dto.SubmitTopicRequest) (dto.ThesisResponse, error) {
	if !principal.Role.CanSubmitThesis() {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "submit a thesis topic"}
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ThesisResponse{}, err
	}

	if _, err := s.theses.GetByStudent(ctx, principal.ID); err == nil {
		return dto.ThesisResponse{}, ErrThesisExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ThesisResponse{}, err
	}

	thesis := models.Thesis{
		StudentID:        principal.ID,
		Title:            strings.TrimSpace(payload.Title),
		Status:           models.StatusSubmitted,
		CurrentIteration: 1,
	}
	if err := s.theses.Create(ctx, &thesis); err != nil {
		return dto.ThesisResponse{}, err
	}

	s.audit(ctx, principal, "thesis.topic_submitted", thesis.ID, map[string]interface{}{"title": thesis.Title})

	return dto.NewThesisResponse(thesis), nil
}

func (s *thesisService) SubmitThesis(ctx context.Context, principal Principal, title string, file *multipart.FileHeader) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "thesis.submit")
	span.SetAttributes(attribute.Int64("thesis.student_id", int64(principal.ID)))
	defer span.End()

	if !principal.Role.CanSubmitThesis() {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "submit a thesis"}
	}
	if strings.TrimSpace(title) == "" {
		return dto.ThesisResponse{}, NewValidationError("title")
	}
	if file == nil {
		return dto.ThesisResponse{}, NewValidationError("file")
	}

	existing, err := s.theses.GetByStudent(ctx, principal.ID)
	switch {
	case err == nil:
		// A topic-only thesis may still receive its first document.
		if existing.Status != models.StatusSubmitted || existing.HasFile() {
			return dto.ThesisResponse{}, ErrThesisExists
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = models.Thesis{}
	default:
		return dto.ThesisResponse{}, err
	}

	fileURL, err := storePDF(ctx, s.storage, s.maxSize, artifactKindThesis, fmt.Sprintf("thesis-%d", principal.ID), file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.ThesisResponse{}, err
	}

	submitted := s.now()

	if existing.ID != 0 {
		updates := map[string]interface{}{
			"file_url":        fileURL,
			"submission_date": submitted,
		}
		if strings.TrimSpace(title) != "" {
			updates["title"] = strings.TrimSpace(title)
		}
		if err := s.theses.Transition(ctx, existing.ID, models.StatusSubmitted, updates); err != nil {
			return dto.ThesisResponse{}, mapStorageErr(err, models.StatusSubmitted)
		}
		s.audit(ctx, principal, "thesis.file_uploaded", existing.ID, map[string]interface{}{"file_url": fileURL})
		return s.snapshot(ctx, existing.ID)
	}

	thesis := models.Thesis{
		StudentID:        principal.ID,
		Title:            strings.TrimSpace(title),
		FileURL:          fileURL,
		SubmissionDate:   &submitted,
		Status:           models.StatusSubmitted,
		CurrentIteration: 1,
	}
	if err := s.theses.Create(ctx, &thesis); err != nil {
		return dto.ThesisResponse{}, err
	}

	s.audit(ctx, principal, "thesis.submitted", thesis.ID, map[string]interface{}{"title": thesis.Title})
	s.events.Publish(ctx, WorkflowEvent{
		Event: "submitted", ThesisID: thesis.ID, To: models.StatusSubmitted,
		ActorID: principal.ID, ActorRole: principal.Role, Iteration: 1,
	})

	return dto.NewThesisResponse(thesis), nil
}

func (s *thesisService) Resubmit(ctx context.Context, principal Principal, thesisID uint, file *multipart.FileHeader) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "thesis.resubmit")
	span.SetAttributes(attribute.Int64("thesis.id", int64(thesisID)))
	defer span.End()

	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, "")
	}
	if thesis.StudentID != principal.ID {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "resubmit someone else's thesis"}
	}
	if thesis.Status != models.StatusRevisionsRequested {
		return dto.ThesisResponse{}, &ConflictError{Expected: models.StatusRevisionsRequested}
	}
	if file == nil {
		return dto.ThesisResponse{}, NewValidationError("file")
	}

	returnStatus := thesis.ReturnStatus
	if returnStatus == "" {
		returnStatus = models.StatusUnderReview
	}
	if !thesis.Status.CanTransition(returnStatus) {
		return dto.ThesisResponse{}, &ConflictError{Expected: thesis.Status, Resource: "recorded return stage"}
	}

	fileURL, err := storePDF(ctx, s.storage, s.maxSize, artifactKindThesis, fmt.Sprintf("thesis-%d-rev%d", principal.ID, thesis.CurrentIteration+1), file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.ThesisResponse{}, err
	}

	// Snapshot the rubric the revision request was based on; the live
	// assessment stays in place for the reviewer to continue from.
	var iteration *models.ReviewIteration
	if thesis.Assessment != nil {
		snapshot, err := thesis.Assessment.Snapshot()
		if err != nil {
			return dto.ThesisResponse{}, err
		}
		iteration = &models.ReviewIteration{
			ThesisID:          thesis.ID,
			Iteration:         thesis.CurrentIteration,
			Snapshot:          snapshot,
			FinalGrade:        thesis.FinalGrade,
			UnsignedReviewURL: thesis.UnsignedReviewURL,
			SignedReviewURL:   thesis.SignedReviewURL,
			Reason:            models.IterationReasonResubmit,
		}
	}

	submitted := s.now()
	updates := map[string]interface{}{
		"status":            returnStatus,
		"file_url":          fileURL,
		"submission_date":   submitted,
		"revision_comment":  "",
		"return_status":     "",
		"current_iteration": gorm.Expr("current_iteration + 1"),
	}
	if err := s.theses.TransitionWithHistory(ctx, thesis.ID, models.StatusRevisionsRequested, updates, iteration, false); err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, models.StatusRevisionsRequested)
	}

	observability.Transitions().WithLabelValues(models.StatusRevisionsRequested.String(), returnStatus.String()).Inc()
	s.audit(ctx, principal, "thesis.resubmitted", thesis.ID, map[string]interface{}{
		"iteration": thesis.CurrentIteration + 1,
		"return_to": returnStatus.String(),
	})
	s.events.Publish(ctx, WorkflowEvent{
		Event: "resubmitted", ThesisID: thesis.ID,
		From: models.StatusRevisionsRequested, To: returnStatus,
		ActorID: principal.ID, ActorRole: principal.Role,
		Iteration: thesis.CurrentIteration + 1,
	})

	return s.snapshot(ctx, thesis.ID)
}

func (s *thesisService) Get(ctx context.Context, principal Principal, thesisID uint) (dto.ThesisResponse, error) {
	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, "")
	}
	if !canViewThesis(principal, thesis) {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "view this thesis"}
	}
	return dto.NewThesisResponse(thesis), nil
}

// canViewThesis admits the owning student, any principal bound to one of the
// thesis's slots, and assigning roles.
func canViewThesis(principal Principal, thesis models.Thesis) bool {
	if principal.Role.CanAssign() {
		return true
	}
	if thesis.StudentID == principal.ID {
		return true
	}
	for _, slot := range []*uint{thesis.AssignedReviewerID, thesis.AssignedConsultantID, thesis.AssignedSupervisorID} {
		if slot != nil && *slot == principal.ID {
			return true
		}
	}
	return false
}

func (s *thesisService) snapshot(ctx context.Context, thesisID uint) (dto.ThesisResponse, error) {
	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	return dto.NewThesisResponse(thesis), nil
}

func (s *thesisService) audit(ctx context.Context, principal Principal, action string, thesisID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	id := thesisID
	_ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    principal.ID,
		ActorRole:  principal.Role,
		Action:     action,
		EntityType: "thesis",
		EntityID:   &id,
		Metadata:   metadata,
	})
}

// mapStorageErr folds repository-level errors into the workflow taxonomy so
// raw storage errors never cross the service boundary.
func mapStorageErr(err error, expected models.ThesisStatus) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrThesisNotFound
	case errors.Is(err, repository.ErrStaleUpdate):
		return &ConflictError{Expected: expected}
	default:
		return err
	}
}
