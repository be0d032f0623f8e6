package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/observability"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
	"github.com/akademia-dev/thesis-review-api/pkg/renderer"
)

// WorkloadInvalidator drops a reviewer's cached dashboard after a transition
// that changes their workload. Best effort; a miss only means a stale list
// until the TTL expires.
type WorkloadInvalidator interface {
	Invalidate(ctx context.Context, reviewerID uint)
}

// ReviewService drives the rubric, grading, revision and signing
// transitions of the state machine.
type ReviewService interface {
	SaveDraft(ctx context.Context, principal Principal, thesisID uint, payload dto.SaveDraftRequest) (dto.ThesisResponse, error)
	Submit(ctx context.Context, principal Principal, thesisID uint, payload dto.SubmitReviewRequest) (dto.ThesisResponse, error)
	RequestRevisions(ctx context.Context, principal Principal, thesisID uint, payload dto.RequestRevisionsRequest) (dto.ThesisResponse, error)
	ReReview(ctx context.Context, principal Principal, thesisID uint) (dto.ThesisResponse, error)
	RenderDocument(ctx context.Context, principal Principal, thesisID uint) (dto.RenderedDocumentResponse, error)
	UploadSigned(ctx context.Context, principal Principal, thesisID uint, file *multipart.FileHeader) (dto.ThesisResponse, error)
}

type reviewService struct {
	theses    repository.ThesisRepository
	users     repository.UserRepository
	storage   FileStorage
	renderer  DocumentRenderer
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	activity  ActivityRecorder
	events    EventPublisher
	workload  WorkloadInvalidator
	logger    zerolog.Logger
	tracer    trace.Tracer
	maxSize   int64
	now       func() time.Time
}

// NewReviewService constructs the review service.
func NewReviewService(theses repository.ThesisRepository, users repository.UserRepository, storage FileStorage, docRenderer DocumentRenderer, validate *validator.Validate, activity ActivityRecorder, events EventPublisher, workload WorkloadInvalidator, maxSizeMB int, logger zerolog.Logger) ReviewService {
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	return &reviewService{
		theses:    theses,
		users:     users,
		storage:   storage,
		renderer:  docRenderer,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		activity:  activity,
		events:    events,
		workload:  workload,
		logger:    logger.With().Str("component", "review_service").Logger(),
		tracer:    otel.Tracer("github.com/akademia-dev/thesis-review-api/internal/service/review"),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		now:       time.Now,
	}
}

func (s *reviewService) SaveDraft(ctx context.Context, principal Principal, thesisID uint, payload dto.SaveDraftRequest) (dto.ThesisResponse, error) {
	thesis, err := s.ownedForReview(ctx, principal, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	if thesis.Status != models.StatusAssigned && thesis.Status != models.StatusUnderReview {
		return dto.ThesisResponse{}, &ConflictError{Expected: models.StatusAssigned}
	}

	assessment, err := s.applyRubric(thesis, payload.Rubric)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	if err := s.theses.SaveAssessment(ctx, &assessment); err != nil {
		return dto.ThesisResponse{}, err
	}

	// Opening the rubric moves the thesis under review; saving again while
	// already there is a no-op on status.
	if thesis.Status == models.StatusAssigned {
		err := s.theses.Transition(ctx, thesis.ID, models.StatusAssigned, map[string]interface{}{
			"status": models.StatusUnderReview,
		})
		if err != nil && !errors.Is(err, repository.ErrStaleUpdate) {
			return dto.ThesisResponse{}, err
		}
		if err == nil {
			s.recordTransition(ctx, principal, thesis, models.StatusAssigned, models.StatusUnderReview, "review.draft_started", nil)
		}
	}

	return s.snapshot(ctx, thesis.ID)
}

func (s *reviewService) Submit(ctx context.Context, principal Principal, thesisID uint, payload dto.SubmitReviewRequest) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.submit")
	span.SetAttributes(attribute.Int64("review.thesis_id", int64(thesisID)))
	defer span.End()

	thesis, err := s.ownedForReview(ctx, principal, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	if thesis.Status != models.StatusAssigned && thesis.Status != models.StatusUnderReview {
		if thesis.Status.Terminal() {
			return dto.ThesisResponse{}, ErrAlreadyEvaluated
		}
		return dto.ThesisResponse{}, &ConflictError{Expected: models.StatusUnderReview}
	}

	assessment, err := s.applyRubric(thesis, payload.Rubric)
	if err != nil {
		return dto.ThesisResponse{}, err
	}

	// All guards are evaluated together so the form can highlight every
	// incomplete field at once rather than one per round trip.
	missing := assessment.MissingFields()
	if !models.ValidGrade(payload.Grade) {
		missing = append(missing, "grade")
	}

	reviewer, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ThesisResponse{}, ErrUserNotFound
		}
		return dto.ThesisResponse{}, err
	}
	for _, field := range reviewer.ProfileMissingFields() {
		missing = append(missing, "profile."+field)
	}

	if len(missing) > 0 {
		span.SetAttributes(attribute.Int("review.missing_fields", len(missing)))
		observability.TransitionRejections().WithLabelValues("rubric_incomplete").Inc()
		return dto.ThesisResponse{}, &ValidationError{MissingFields: missing}
	}

	if err := s.theses.SaveAssessment(ctx, &assessment); err != nil {
		return dto.ThesisResponse{}, err
	}

	gradedAt := s.now()
	from := thesis.Status
	updates := map[string]interface{}{
		"status":             models.StatusGradedPendingSignature,
		"final_grade":        payload.Grade,
		"graded_at":          gradedAt,
		"graded_by":          principal.ID,
		"total_review_count": gorm.Expr("total_review_count + 1"),
	}
	if err := s.theses.Transition(ctx, thesis.ID, from, updates); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return dto.ThesisResponse{}, mapStorageErr(err, from)
	}

	s.recordTransition(ctx, principal, thesis, from, models.StatusGradedPendingSignature, "review.submitted", map[string]interface{}{
		"grade": payload.Grade,
	})

	return s.snapshot(ctx, thesis.ID)
}

func (s *reviewService) RequestRevisions(ctx context.Context, principal Principal, thesisID uint, payload dto.RequestRevisionsRequest) (dto.ThesisResponse, error) {
	if !principal.Role.CanRequestRevisions() {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "request revisions"}
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ThesisResponse{}, NewValidationError("comment")
	}

	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, "")
	}
	if !s.occupiesStageSlot(principal, thesis) {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "request revisions on this thesis"}
	}
	if !thesis.Status.CanTransition(models.StatusRevisionsRequested) {
		if thesis.Status.Terminal() {
			return dto.ThesisResponse{}, ErrAlreadyEvaluated
		}
		return dto.ThesisResponse{}, &ConflictError{Expected: thesis.Status}
	}

	from := thesis.Status
	comment := strings.TrimSpace(s.sanitizer.Sanitize(payload.Comment))
	if comment == "" {
		return dto.ThesisResponse{}, NewValidationError("comment")
	}

	updates := map[string]interface{}{
		"status":           models.StatusRevisionsRequested,
		"revision_comment": comment,
		"return_status":    from,
	}
	if err := s.theses.Transition(ctx, thesis.ID, from, updates); err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, from)
	}

	s.recordTransition(ctx, principal, thesis, from, models.StatusRevisionsRequested, "review.revisions_requested", map[string]interface{}{
		"comment": comment,
	})

	return s.snapshot(ctx, thesis.ID)
}

func (s *reviewService) ReReview(ctx context.Context, principal Principal, thesisID uint) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.re_review")
	span.SetAttributes(attribute.Int64("review.thesis_id", int64(thesisID)))
	defer span.End()

	if !principal.Role.CanTriggerReReview() {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "trigger a re-review"}
	}

	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, "")
	}
	if principal.Role == models.RoleReviewer && !s.isAssignedReviewer(principal, thesis) {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "re-review someone else's assignment"}
	}
	if thesis.Status != models.StatusEvaluated && thesis.Status != models.StatusGradedPendingSignature {
		return dto.ThesisResponse{}, &ConflictError{Expected: models.StatusEvaluated}
	}

	iteration := &models.ReviewIteration{
		ThesisID:          thesis.ID,
		Iteration:         thesis.CurrentIteration,
		FinalGrade:        thesis.FinalGrade,
		UnsignedReviewURL: thesis.UnsignedReviewURL,
		SignedReviewURL:   thesis.SignedReviewURL,
		Reason:            models.IterationReasonReReview,
	}
	if thesis.Assessment != nil {
		snapshot, err := thesis.Assessment.Snapshot()
		if err != nil {
			return dto.ThesisResponse{}, err
		}
		iteration.Snapshot = snapshot
	}

	from := thesis.Status
	updates := map[string]interface{}{
		"status":              models.StatusAssigned,
		"final_grade":         nil,
		"graded_at":           nil,
		"graded_by":           nil,
		"unsigned_review_url": "",
		"signed_review_url":   "",
		"artifact_iteration":  0,
		"current_iteration":   gorm.Expr("current_iteration + 1"),
	}
	if err := s.theses.TransitionWithHistory(ctx, thesis.ID, from, updates, iteration, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		return dto.ThesisResponse{}, mapStorageErr(err, from)
	}

	s.recordTransition(ctx, principal, thesis, from, models.StatusAssigned, "review.reopened", map[string]interface{}{
		"snapshot_iteration": thesis.CurrentIteration,
	})

	return s.snapshot(ctx, thesis.ID)
}

func (s *reviewService) RenderDocument(ctx context.Context, principal Principal, thesisID uint) (dto.RenderedDocumentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.render_document")
	span.SetAttributes(attribute.Int64("review.thesis_id", int64(thesisID)))
	defer span.End()

	start := s.now()
	defer func() {
		observability.ReviewRenderSeconds().Observe(time.Since(start).Seconds())
	}()

	thesis, err := s.ownedForReview(ctx, principal, thesisID)
	if err != nil {
		return dto.RenderedDocumentResponse{}, err
	}
	if thesis.Status != models.StatusGradedPendingSignature && thesis.Status != models.StatusEvaluated {
		return dto.RenderedDocumentResponse{}, &ConflictError{Expected: models.StatusGradedPendingSignature}
	}
	if thesis.Assessment == nil {
		return dto.RenderedDocumentResponse{}, NewValidationError("assessment")
	}

	// Rendering is idempotent per iteration: once the unsigned document
	// for the live iteration exists, the stored reference is returned.
	if thesis.UnsignedReviewURL != "" && thesis.ArtifactIteration == thesis.CurrentIteration {
		return dto.RenderedDocumentResponse{
			ThesisID:  thesis.ID,
			Iteration: thesis.ArtifactIteration,
			FileURL:   thesis.UnsignedReviewURL,
		}, nil
	}

	reviewer, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return dto.RenderedDocumentResponse{}, err
	}

	snapshot, err := thesis.Assessment.Snapshot()
	if err != nil {
		return dto.RenderedDocumentResponse{}, err
	}

	meta := renderer.Metadata{
		ThesisID:      thesis.ID,
		Iteration:     thesis.CurrentIteration,
		ThesisTitle:   thesis.Title,
		StudentName:   thesis.Student.Name,
		ReviewerName:  reviewer.Name,
		ReviewerTitle: reviewer.Title,
	}

	fileURL, err := s.renderer.Render(ctx, json.RawMessage(snapshot), meta)
	if err != nil {
		var unavailable *renderer.UnavailableError
		if errors.As(err, &unavailable) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "renderer_unavailable")
			return dto.RenderedDocumentResponse{}, &TransientInfraError{Op: "document renderer", Cause: err}
		}
		return dto.RenderedDocumentResponse{}, err
	}

	updates := map[string]interface{}{
		"unsigned_review_url": fileURL,
		"artifact_iteration":  thesis.CurrentIteration,
	}
	if err := s.theses.Transition(ctx, thesis.ID, thesis.Status, updates); err != nil {
		return dto.RenderedDocumentResponse{}, mapStorageErr(err, thesis.Status)
	}

	s.audit(ctx, principal, "review.document_rendered", thesis.ID, map[string]interface{}{
		"iteration": thesis.CurrentIteration,
	})

	return dto.RenderedDocumentResponse{
		ThesisID:  thesis.ID,
		Iteration: thesis.CurrentIteration,
		FileURL:   fileURL,
	}, nil
}

func (s *reviewService) UploadSigned(ctx context.Context, principal Principal, thesisID uint, file *multipart.FileHeader) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.upload_signed")
	span.SetAttributes(attribute.Int64("review.thesis_id", int64(thesisID)))
	defer span.End()

	thesis, err := s.ownedForReview(ctx, principal, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	if thesis.Status != models.StatusGradedPendingSignature {
		if thesis.Status.Terminal() {
			return dto.ThesisResponse{}, ErrAlreadyEvaluated
		}
		return dto.ThesisResponse{}, &ConflictError{Expected: models.StatusGradedPendingSignature}
	}
	if thesis.UnsignedReviewURL == "" {
		return dto.ThesisResponse{}, ErrNoUnsignedDocument
	}
	// The signed counterpart must replace the unsigned document of the
	// live iteration, not a stale one from before a re-review.
	if thesis.ArtifactIteration != thesis.CurrentIteration {
		return dto.ThesisResponse{}, ErrIterationMismatch
	}
	if file == nil {
		return dto.ThesisResponse{}, NewValidationError("file")
	}

	fileURL, err := storePDF(ctx, s.storage, s.maxSize, artifactKindSignedReview, fmt.Sprintf("review-%d-iter%d-signed", thesis.ID, thesis.CurrentIteration), file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload_failed")
		return dto.ThesisResponse{}, err
	}

	updates := map[string]interface{}{
		"status":            models.StatusEvaluated,
		"signed_review_url": fileURL,
	}
	if err := s.theses.Transition(ctx, thesis.ID, models.StatusGradedPendingSignature, updates); err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, models.StatusGradedPendingSignature)
	}

	s.recordTransition(ctx, principal, thesis, models.StatusGradedPendingSignature, models.StatusEvaluated, "review.signed", map[string]interface{}{
		"iteration": thesis.CurrentIteration,
	})

	return s.snapshot(ctx, thesis.ID)
}

// ownedForReview loads the thesis and verifies the caller is its assigned,
// approved reviewer.
func (s *reviewService) ownedForReview(ctx context.Context, principal Principal, thesisID uint) (models.Thesis, error) {
	if !principal.Role.CanReview() {
		return models.Thesis{}, &AuthorizationError{Role: principal.Role, Action: "review a thesis"}
	}

	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return models.Thesis{}, mapStorageErr(err, "")
	}
	if !s.isAssignedReviewer(principal, thesis) {
		return models.Thesis{}, &AuthorizationError{Role: principal.Role, Action: "review a thesis assigned to someone else"}
	}
	return thesis, nil
}

func (s *reviewService) isAssignedReviewer(principal Principal, thesis models.Thesis) bool {
	return thesis.AssignedReviewerID != nil && *thesis.AssignedReviewerID == principal.ID
}

// occupiesStageSlot checks that the principal holds the slot matching the
// thesis's current stage: consultant during with_consultant, supervisor
// during with_supervisor, reviewer once assigned.
func (s *reviewService) occupiesStageSlot(principal Principal, thesis models.Thesis) bool {
	var slot *uint
	switch thesis.Status {
	case models.StatusWithConsultant:
		slot = thesis.AssignedConsultantID
	case models.StatusWithSupervisor:
		slot = thesis.AssignedSupervisorID
	default:
		slot = thesis.AssignedReviewerID
	}
	return slot != nil && *slot == principal.ID
}

// applyRubric merges a rubric payload into the thesis's assessment record,
// sanitizing free text and rejecting values outside the fixed criterion and
// ordinal sets. Completeness is deliberately not checked here.
func (s *reviewService) applyRubric(thesis models.Thesis, payload dto.RubricPayload) (models.Assessment, error) {
	var invalid []string

	scores := datatypes.JSONMap{}
	for key, level := range payload.Scores {
		key = strings.ToLower(strings.TrimSpace(key))
		level = strings.ToLower(strings.TrimSpace(level))
		if !models.ValidCriterionKey(key) {
			invalid = append(invalid, fmt.Sprintf("section_one.%s (unknown criterion)", key))
			continue
		}
		if !models.ValidOrdinalLevel(level) {
			invalid = append(invalid, fmt.Sprintf("section_one.%s (invalid level %q)", key, level))
			continue
		}
		scores[key] = level
	}
	if len(invalid) > 0 {
		return models.Assessment{}, &ValidationError{MissingFields: invalid}
	}

	questions := make([]string, 0, len(payload.Questions))
	for _, question := range payload.Questions {
		questions = append(questions, strings.TrimSpace(s.sanitizer.Sanitize(question)))
	}
	encoded, err := json.Marshal(questions)
	if err != nil {
		return models.Assessment{}, err
	}

	assessment := models.Assessment{
		ThesisID:        thesis.ID,
		Scores:          scores,
		Questions:       datatypes.JSON(encoded),
		Advantages:      strings.TrimSpace(s.sanitizer.Sanitize(payload.Advantages)),
		Disadvantages:   strings.TrimSpace(s.sanitizer.Sanitize(payload.Disadvantages)),
		FinalAssessment: strings.TrimSpace(s.sanitizer.Sanitize(payload.FinalAssessment)),
		IsComplete:      payload.IsComplete,
		DegreeWorthy:    payload.DegreeWorthy,
	}
	if thesis.Assessment != nil {
		assessment.ID = thesis.Assessment.ID
		assessment.CreatedAt = thesis.Assessment.CreatedAt
	}
	return assessment, nil
}

func (s *reviewService) recordTransition(ctx context.Context, principal Principal, thesis models.Thesis, from, to models.ThesisStatus, action string, metadata map[string]interface{}) {
	observability.Transitions().WithLabelValues(from.String(), to.String()).Inc()

	s.audit(ctx, principal, action, thesis.ID, metadata)

	s.events.Publish(ctx, WorkflowEvent{
		Event:     strings.TrimPrefix(action, "review."),
		ThesisID:  thesis.ID,
		From:      from,
		To:        to,
		ActorID:   principal.ID,
		ActorRole: principal.Role,
		Iteration: thesis.CurrentIteration,
	})

	if s.workload != nil && thesis.AssignedReviewerID != nil {
		s.workload.Invalidate(ctx, *thesis.AssignedReviewerID)
	}
}

func (s *reviewService) audit(ctx context.Context, principal Principal, action string, thesisID uint, metadata map[string]interface{}) {
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

func (s *reviewService) snapshot(ctx context.Context, thesisID uint) (dto.ThesisResponse, error) {
	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	return dto.NewThesisResponse(thesis), nil
}
