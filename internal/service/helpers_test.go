package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/akademia-dev/thesis-review-api/internal/models"
	"github.com/akademia-dev/thesis-review-api/pkg/renderer"
	"github.com/akademia-dev/thesis-review-api/pkg/similarity"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "_svc?mode=memory&cache=shared"
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
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role, approved bool) models.User {
	t.Helper()

	user := models.User{
		Name:        string(role) + " user",
		Email:       fmt.Sprintf("%s-%d@example.com", role, seqID(db, &models.User{})),
		Role:        role,
		IsApproved:  approved,
		Department:  "Computer Science",
		Title:       "Docent",
		Degree:      "PhD",
		Institution: "Test University",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seqID(db *gorm.DB, model interface{}) int64 {
	var count int64
	db.Model(model).Count(&count)
	return count + 1
}

func seedThesisFor(t *testing.T, db *gorm.DB, student models.User, status models.ThesisStatus) models.Thesis {
	t.Helper()

	thesis := models.Thesis{
		StudentID: student.ID,
		Title:     "Distributed Consensus in Practice",
		FileURL:   "https://files.test/submissions/thesis.pdf",
		Status:    status,
	}
	require.NoError(t, db.Create(&thesis).Error)
	return thesis
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<<>>\n%%EOF")
}

type storageStub struct {
	uploads []string
	fail    error
}

func (s *storageStub) Upload(_ context.Context, kind, name string, _ io.Reader) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	url := "https://files.test/" + kind + "/" + name
	s.uploads = append(s.uploads, url)
	return url, nil
}

type oracleStub struct {
	mu     sync.Mutex
	result similarity.Result
	err    error
	calls  int
}

func (o *oracleStub) Score(_ context.Context, _ string) (similarity.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return similarity.Result{}, o.err
	}
	return o.result, nil
}

func (o *oracleStub) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type rendererStub struct {
	fileURL string
	err     error
	calls   int
}

func (r *rendererStub) Render(_ context.Context, _ json.RawMessage, meta renderer.Metadata) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if r.fileURL != "" {
		return r.fileURL, nil
	}
	return fmt.Sprintf("https://files.test/reviews/unsigned/review-%d-iter%d.pdf", meta.ThesisID, meta.Iteration), nil
}

type recorderStub struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recorderStub) Record(_ context.Context, entry ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type publisherStub struct {
	mu     sync.Mutex
	events []WorkflowEvent
}

func (p *publisherStub) Publish(_ context.Context, event WorkflowEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *publisherStub) published() []WorkflowEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]WorkflowEvent(nil), p.events...)
}
