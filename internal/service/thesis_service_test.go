package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/dto"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
)

type thesisFixture struct {
	db      *gorm.DB
	theses  repository.ThesisRepository
	storage *storageStub
	events  *publisherStub
	svc     ThesisService
	student models.User
}

func newThesisFixture(t *testing.T) *thesisFixture {
	t.Helper()

	db := setupServiceDB(t)
	theses := repository.NewThesisRepository(db)

	f := &thesisFixture{
		db:      db,
		theses:  theses,
		storage: &storageStub{},
		events:  &publisherStub{},
	}
	f.svc = NewThesisService(theses, f.storage, validator.New(), &recorderStub{}, f.events, 25, testLogger())
	f.student = seedUser(t, db, models.RoleStudent, true)
	return f
}

func (f *thesisFixture) principal() Principal {
	return Principal{ID: f.student.ID, Role: models.RoleStudent}
}

func TestSubmitTopicCreatesThesis(t *testing.T) {
	f := newThesisFixture(t)

	resp, err := f.svc.SubmitTopic(context.Background(), f.principal(), dto.SubmitTopicRequest{Title: "Adaptive Query Optimization"})
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, resp.Status)
	require.Equal(t, 1, resp.CurrentIteration)
	require.Empty(t, resp.FileURL)
}

func TestSubmitTopicOnePerStudent(t *testing.T) {
	f := newThesisFixture(t)

	_, err := f.svc.SubmitTopic(context.Background(), f.principal(), dto.SubmitTopicRequest{Title: "Adaptive Query Optimization"})
	require.NoError(t, err)

	_, err = f.svc.SubmitTopic(context.Background(), f.principal(), dto.SubmitTopicRequest{Title: "A second topic"})
	require.ErrorIs(t, err, ErrThesisExists)
}

func TestSubmitThesisStoresDocument(t *testing.T) {
	f := newThesisFixture(t)

	file := buildFileHeader(t, "thesis.pdf", pdfBytes())
	resp, err := f.svc.SubmitThesis(context.Background(), f.principal(), "Adaptive Query Optimization", file)
	require.NoError(t, err)
	require.Equal(t, models.StatusSubmitted, resp.Status)
	require.NotEmpty(t, resp.FileURL)
	require.NotNil(t, resp.SubmissionDate)
	require.Len(t, f.storage.uploads, 1)
}

func TestSubmitThesisRejectsNonPDF(t *testing.T) {
	f := newThesisFixture(t)

	file := buildFileHeader(t, "thesis.docx", []byte("word soup"))
	_, err := f.svc.SubmitThesis(context.Background(), f.principal(), "Adaptive Query Optimization", file)
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)
	require.Empty(t, f.storage.uploads)
}

func TestSubmitThesisAttachesFileToTopic(t *testing.T) {
	f := newThesisFixture(t)

	_, err := f.svc.SubmitTopic(context.Background(), f.principal(), dto.SubmitTopicRequest{Title: "Adaptive Query Optimization"})
	require.NoError(t, err)

	file := buildFileHeader(t, "thesis.pdf", pdfBytes())
	resp, err := f.svc.SubmitThesis(context.Background(), f.principal(), "Adaptive Query Optimization", file)
	require.NoError(t, err)
	require.NotEmpty(t, resp.FileURL)

	// Still one thesis for the student, now carrying the document.
	var count int64
	require.NoError(t, f.db.Model(&models.Thesis{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSubmitThesisRejectsNonStudent(t *testing.T) {
	f := newThesisFixture(t)
	reviewer := seedUser(t, f.db, models.RoleReviewer, true)

	file := buildFileHeader(t, "thesis.pdf", pdfBytes())
	_, err := f.svc.SubmitThesis(context.Background(), Principal{ID: reviewer.ID, Role: models.RoleReviewer}, "Title long enough", file)

	var authz *AuthorizationError
	require.ErrorAs(t, err, &authz)
}

func TestResubmitReturnsToRecordedStatus(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusRevisionsRequested)
	require.NoError(t, f.db.Model(&models.Thesis{}).
		Where("id = ?", thesis.ID).
		Updates(map[string]interface{}{
			"return_status":    models.StatusUnderReview,
			"revision_comment": "Fix chapter three.",
		}).Error)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	resp, err := f.svc.Resubmit(context.Background(), f.principal(), thesis.ID, file)
	require.NoError(t, err)
	require.Equal(t, models.StatusUnderReview, resp.Status)
	require.Equal(t, 2, resp.CurrentIteration)

	reloaded, err := f.theses.GetByID(context.Background(), thesis.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.RevisionComment)
	require.Empty(t, reloaded.ReturnStatus)
}

func TestResubmitOnlyFromRevisionsRequested(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusUnderReview)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	_, err := f.svc.Resubmit(context.Background(), f.principal(), thesis.ID, file)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestResubmitRejectsForeignStudent(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusRevisionsRequested)
	other := seedUser(t, f.db, models.RoleStudent, true)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	_, err := f.svc.Resubmit(context.Background(), Principal{ID: other.ID, Role: models.RoleStudent}, thesis.ID, file)

	var authz *AuthorizationError
	require.ErrorAs(t, err, &authz)
}

func TestGetEnforcesVisibility(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusSubmitted)
	stranger := seedUser(t, f.db, models.RoleReviewer, true)

	_, err := f.svc.Get(context.Background(), f.principal(), thesis.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), Principal{ID: stranger.ID, Role: models.RoleReviewer}, thesis.ID)
	var authz *AuthorizationError
	require.ErrorAs(t, err, &authz)

	_, err = f.svc.Get(context.Background(), Principal{ID: 999, Role: models.RoleAdmin}, thesis.ID)
	require.NoError(t, err)
}

func TestResubmitSnapshotsExistingAssessment(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusRevisionsRequested)
	require.NoError(t, f.db.Model(&models.Thesis{}).
		Where("id = ?", thesis.ID).
		Update("return_status", models.StatusUnderReview).Error)
	require.NoError(t, f.db.Create(&models.Assessment{
		ThesisID: thesis.ID,
		Scores:   datatypes.JSONMap{"relevance": "good"},
	}).Error)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	resp, err := f.svc.Resubmit(context.Background(), f.principal(), thesis.ID, file)
	require.NoError(t, err)
	require.Equal(t, 2, resp.CurrentIteration)

	reloaded, err := f.theses.GetByID(context.Background(), thesis.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.ReviewIterations, 1)
	require.Equal(t, models.IterationReasonResubmit, reloaded.ReviewIterations[0].Reason)
	require.Equal(t, 1, reloaded.ReviewIterations[0].Iteration)
	require.NotEmpty(t, reloaded.ReviewIterations[0].Snapshot)
	// The live rubric survives so the reviewer picks up where they left off.
	require.NotNil(t, reloaded.Assessment)
}

func TestResubmitWithoutAssessmentAppendsNoHistory(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusRevisionsRequested)
	require.NoError(t, f.db.Model(&models.Thesis{}).
		Where("id = ?", thesis.ID).
		Update("return_status", models.StatusWithConsultant).Error)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	resp, err := f.svc.Resubmit(context.Background(), f.principal(), thesis.ID, file)
	require.NoError(t, err)
	require.Equal(t, models.StatusWithConsultant, resp.Status)

	reloaded, err := f.theses.GetByID(context.Background(), thesis.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.ReviewIterations)
}

func TestResubmitReturnsToAssignedStage(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusRevisionsRequested)
	require.NoError(t, f.db.Model(&models.Thesis{}).
		Where("id = ?", thesis.ID).
		Update("return_status", models.StatusAssigned).Error)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	resp, err := f.svc.Resubmit(context.Background(), f.principal(), thesis.ID, file)
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, resp.Status)
}

func TestResubmitSurfacesInvalidReturnStage(t *testing.T) {
	f := newThesisFixture(t)
	thesis := seedThesisFor(t, f.db, f.student, models.StatusRevisionsRequested)
	require.NoError(t, f.db.Model(&models.Thesis{}).
		Where("id = ?", thesis.ID).
		Update("return_status", models.StatusEvaluated).Error)

	file := buildFileHeader(t, "thesis-v2.pdf", pdfBytes())
	_, err := f.svc.Resubmit(context.Background(), f.principal(), thesis.ID, file)

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	reloaded, err := f.theses.GetByID(context.Background(), thesis.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRevisionsRequested, reloaded.Status)
}
