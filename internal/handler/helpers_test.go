package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/config"
	"github.com/akademia-dev/thesis-review-api/internal/handler"
	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/internal/repository"
	"github.com/akademia-dev/thesis-review-api/internal/router"
	"github.com/akademia-dev/thesis-review-api/internal/service"
	"github.com/akademia-dev/thesis-review-api/pkg/renderer"
	"github.com/akademia-dev/thesis-review-api/pkg/similarity"
)

type handlerStorage struct{}

func (s *handlerStorage) Upload(_ context.Context, kind, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + kind + "/" + name, nil
}

type handlerOracle struct {
	score float64
}

func (o *handlerOracle) Score(_ context.Context, _ string) (similarity.Result, error) {
	return similarity.Result{SimilarityScore: o.score, ReportURL: "https://oracle.test/report"}, nil
}

type handlerRenderer struct{}

func (r *handlerRenderer) Render(_ context.Context, _ json.RawMessage, meta renderer.Metadata) (string, error) {
	return fmt.Sprintf("https://files.test/reviews/unsigned/review-%d-iter%d.pdf", meta.ThesisID, meta.Iteration), nil
}

type handlerPublisher struct{}

func (p *handlerPublisher) Publish(_ context.Context, _ service.WorkflowEvent) {}

type handlerApp struct {
	app    *fiber.App
	db     *gorm.DB
	oracle *handlerOracle
}

func setupHandlerApp(t *testing.T) *handlerApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s_handler?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Thesis{},
		&models.Assessment{},
		&models.ReviewIteration{},
		&models.Assignment{},
		&models.ActivityLog{},
	))

	mini := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())
	storage := &handlerStorage{}
	oracle := &handlerOracle{score: 4.2}
	docRenderer := &handlerRenderer{}
	events := &handlerPublisher{}

	thesisRepo := repository.NewThesisRepository(db)
	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activity := service.NewActivityService(activityRepo, logger)
	dashboardService := service.NewDashboardService(thesisRepo, cache, time.Minute, logger)
	thesisService := service.NewThesisService(thesisRepo, storage, validate, activity, events, 25, logger)
	plagiarismService := service.NewPlagiarismService(thesisRepo, oracle, activity, events, 15.0, 3, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, thesisRepo, userRepo, validate, activity, events, dashboardService, logger)
	reviewService := service.NewReviewService(thesisRepo, userRepo, storage, docRenderer, validate, activity, events, dashboardService, 25, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", PlagiarismRatePerMin: 100}, router.Dependencies{
		ThesisHandler:     handler.NewThesisHandler(thesisService, logger),
		PlagiarismHandler: handler.NewPlagiarismHandler(plagiarismService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		ReviewHandler:     handler.NewReviewHandler(reviewService, logger),
		ReviewerHandler:   handler.NewReviewerHandler(dashboardService, logger),
		JWTMiddleware:     headerAuth,
	})

	return &handlerApp{app: app, db: db, oracle: oracle}
}

// headerAuth stands in for the JWT middleware: tests declare the acting
// principal via request headers.
func headerAuth(c *fiber.Ctx) error {
	if raw := c.Get("X-Test-User"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			c.Locals("user_id", uint(id))
		}
	}
	if role := c.Get("X-Test-Role"); role != "" {
		c.Locals("user_role", role)
	}
	return c.Next()
}

func (h *handlerApp) seedUser(t *testing.T, role models.Role) models.User {
	t.Helper()

	var count int64
	require.NoError(t, h.db.Model(&models.User{}).Count(&count).Error)

	user := models.User{
		Name:       fmt.Sprintf("%s %d", role, count+1),
		Email:      fmt.Sprintf("%s%d@uni.test", role, count+1),
		Role:       role,
		IsApproved: true,
		Department: "Computer Science",
		Title:      "Docent",
		Degree:     "PhD",
	}
	require.NoError(t, h.db.Create(&user).Error)
	return user
}

func (h *handlerApp) seedThesis(t *testing.T, student models.User, status models.ThesisStatus) models.Thesis {
	t.Helper()

	now := time.Now()
	thesis := models.Thesis{
		StudentID:        student.ID,
		Title:            "On the Stability of Distributed Consensus",
		FileURL:          "https://files.test/submissions/thesis.pdf",
		SubmissionDate:   &now,
		Status:           status,
		CurrentIteration: 1,
	}
	require.NoError(t, h.db.Create(&thesis).Error)
	return thesis
}

func (h *handlerApp) request(t *testing.T, method, path string, body interface{}, user models.User) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user.ID), 10))
	req.Header.Set("X-Test-Role", string(user.Role))

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (h *handlerApp) multipartRequest(t *testing.T, method, path string, fields map[string]string, fileField, fileName string, content []byte, user models.User) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(user.ID), 10))
	req.Header.Set("X-Test-Role", string(user.Role))

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func pdfContent() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
}
