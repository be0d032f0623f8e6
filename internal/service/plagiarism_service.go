package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/observability"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
	"github.com/akademia-dev/thesis-review-api/pkg/similarity"
)

// PlagiarismService runs the bounded-attempt similarity gate.
type PlagiarismService interface {
	Check(ctx context.Context, principal Principal, thesisID uint) (dto.ThesisResponse, error)
	Override(ctx context.Context, principal Principal, thesisID uint, reason string) (dto.ThesisResponse, error)
}

type plagiarismService struct {
	theses      repository.ThesisRepository
	oracle      SimilarityOracle
	activity    ActivityRecorder
	events      EventPublisher
	threshold   float64
	maxAttempts int
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewPlagiarismService constructs the plagiarism gate.
func NewPlagiarismService(theses repository.ThesisRepository, oracle SimilarityOracle, activity ActivityRecorder, events EventPublisher, threshold float64, maxAttempts int, logger zerolog.Logger) PlagiarismService {
	if threshold <= 0 {
		threshold = models.SimilarityThresholdScore
	}
	if maxAttempts <= 0 {
		maxAttempts = models.MaxPlagiarismAttempts
	}
	return &plagiarismService{
		theses:      theses,
		oracle:      oracle,
		activity:    activity,
		events:      events,
		threshold:   threshold,
		maxAttempts: maxAttempts,
		logger:      logger.With().Str("component", "plagiarism_service").Logger(),
		tracer:      otel.Tracer("github.com/akademia-dev/thesis-review-api/internal/service/plagiarism"),
		now:         time.Now,
	}
}

func (s *plagiarismService) Check(ctx context.Context, principal Principal, thesisID uint) (dto.ThesisResponse, error) {
	ctx, span := s.tracer.Start(ctx, "plagiarism.check")
	span.SetAttributes(attribute.Int64("plagiarism.thesis_id", int64(thesisID)))
	defer span.End()

	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, "")
	}
	if thesis.StudentID != principal.ID && principal.Role != models.RoleAdmin {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "check someone else's thesis"}
	}
	if !thesis.HasFile() {
		return dto.ThesisResponse{}, ErrNoFileUploaded
	}
	if thesis.PlagiarismApproved() {
		// Already under the threshold (or overridden); re-running would
		// only burn attempts.
		return dto.NewThesisResponse(thesis), nil
	}
	if thesis.PlagiarismAttempts >= s.maxAttempts {
		observability.PlagiarismChecks().WithLabelValues("exhausted").Inc()
		return dto.ThesisResponse{}, &ExhaustionError{Attempts: thesis.PlagiarismAttempts, MaxAttempts: s.maxAttempts}
	}

	// The oracle round trip happens here, outside any lock on the thesis
	// row; the outcome lands in one conditional update below.
	result, err := s.oracle.Score(ctx, thesis.FileURL)
	if err != nil {
		var unavailable *similarity.UnavailableError
		if errors.As(err, &unavailable) {
			observability.PlagiarismChecks().WithLabelValues("transient_failure").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "oracle_unavailable")
			s.logger.Warn().Err(err).Uint("thesis_id", thesisID).Msg("similarity oracle unavailable, attempt not consumed")
			return dto.ThesisResponse{}, &TransientInfraError{Op: "similarity oracle", Cause: err}
		}
		return dto.ThesisResponse{}, err
	}

	approved := result.SimilarityScore <= s.threshold
	updates := map[string]interface{}{
		"plagiarism_checked":    true,
		"similarity_score":      result.SimilarityScore,
		"plagiarism_report_url": result.ReportURL,
		"plagiarism_attempts":   thesis.PlagiarismAttempts + 1,
	}

	// Keyed on the attempt count we read: a concurrent duplicate of the
	// same check can consume at most one attempt between the two of them.
	if err := s.theses.ApplyPlagiarismResult(ctx, thesis.ID, thesis.PlagiarismAttempts, updates); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			observability.PlagiarismChecks().WithLabelValues("duplicate").Inc()
			return dto.ThesisResponse{}, &ConflictError{Expected: thesis.Status, Resource: "plagiarism check"}
		}
		return dto.ThesisResponse{}, err
	}

	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	observability.PlagiarismChecks().WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.Float64("plagiarism.similarity_score", result.SimilarityScore),
		attribute.Bool("plagiarism.approved", approved),
	)

	s.record(ctx, principal, thesis.ID, "plagiarism.checked", map[string]interface{}{
		"similarity_score": result.SimilarityScore,
		"approved":         approved,
		"attempt":          thesis.PlagiarismAttempts + 1,
	})
	s.events.Publish(ctx, WorkflowEvent{
		Event:     "plagiarism." + outcome,
		ThesisID:  thesis.ID,
		From:      thesis.Status,
		To:        thesis.Status,
		ActorID:   principal.ID,
		ActorRole: principal.Role,
		Iteration: thesis.CurrentIteration,
	})

	return s.snapshot(ctx, thesis.ID)
}

// Override marks the plagiarism gate as passed without an oracle score. It
// is the only recovery path once the attempt budget is exhausted.
func (s *plagiarismService) Override(ctx context.Context, principal Principal, thesisID uint, reason string) (dto.ThesisResponse, error) {
	if !principal.Role.CanOverridePlagiarism() {
		return dto.ThesisResponse{}, &AuthorizationError{Role: principal.Role, Action: "override the plagiarism gate"}
	}

	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, "")
	}
	if thesis.PlagiarismOverride {
		return dto.NewThesisResponse(thesis), nil
	}

	updates := map[string]interface{}{
		"plagiarism_checked":  true,
		"plagiarism_override": true,
	}
	if err := s.theses.Transition(ctx, thesis.ID, thesis.Status, updates); err != nil {
		return dto.ThesisResponse{}, mapStorageErr(err, thesis.Status)
	}

	observability.PlagiarismChecks().WithLabelValues("overridden").Inc()
	s.record(ctx, principal, thesis.ID, "plagiarism.overridden", map[string]interface{}{
		"reason":   reason,
		"attempts": thesis.PlagiarismAttempts,
	})
	s.events.Publish(ctx, WorkflowEvent{
		Event:     "plagiarism.overridden",
		ThesisID:  thesis.ID,
		From:      thesis.Status,
		To:        thesis.Status,
		ActorID:   principal.ID,
		ActorRole: principal.Role,
		Iteration: thesis.CurrentIteration,
	})

	return s.snapshot(ctx, thesis.ID)
}

func (s *plagiarismService) record(ctx context.Context, principal Principal, thesisID uint, action string, metadata map[string]interface{}) {
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

func (s *plagiarismService) snapshot(ctx context.Context, thesisID uint) (dto.ThesisResponse, error) {
	thesis, err := s.theses.GetByID(ctx, thesisID)
	if err != nil {
		return dto.ThesisResponse{}, err
	}
	return dto.NewThesisResponse(thesis), nil
}
