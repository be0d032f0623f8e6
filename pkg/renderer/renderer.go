// Package renderer wraps the external document-rendering service that turns
// a finalized rubric into the unsigned review document. PDF layout and
// typesetting happen on the other side of the HTTP boundary.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UnavailableError signals a transient renderer failure; safe to retry.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("document renderer unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Metadata identifies the thesis and iteration a rendered document belongs
// to, so the signed counterpart can later be matched against it.
type Metadata struct {
	ThesisID      uint   `json:"thesis_id"`
	Iteration     int    `json:"iteration"`
	ThesisTitle   string `json:"thesis_title"`
	StudentName   string `json:"student_name"`
	ReviewerName  string `json:"reviewer_name"`
	ReviewerTitle string `json:"reviewer_title"`
}

// Config defines connection options for the renderer client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client calls the rendering service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New builds a renderer client from the configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("renderer base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/akademia-dev/thesis-review-api/pkg/renderer"),
		logger:  cfg.Logger.With().Str("component", "renderer_client").Logger(),
	}, nil
}

type renderRequest struct {
	Rubric   json.RawMessage `json:"rubric"`
	Metadata Metadata        `json:"metadata"`
}

type renderResponse struct {
	FileURL string `json:"file_url"`
}

// Render submits the rubric snapshot and returns the location of the
// rendered unsigned document.
func (c *Client) Render(ctx context.Context, rubric json.RawMessage, meta Metadata) (string, error) {
	ctx, span := c.tracer.Start(ctx, "renderer.render")
	span.SetAttributes(
		attribute.Int64("render.thesis_id", int64(meta.ThesisID)),
		attribute.Int("render.iteration", meta.Iteration),
	)
	defer span.End()

	payload, err := json.Marshal(renderRequest{Rubric: rubric, Metadata: meta})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/render", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "renderer_unreachable")
		return "", &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		err := fmt.Errorf("renderer returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "renderer_server_error")
		return "", &UnavailableError{Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("renderer rejected request with status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "renderer_rejected")
		return "", err
	}

	var result renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "renderer_decode_failed")
		return "", &UnavailableError{Cause: err}
	}

	c.logger.Debug().Uint("thesis_id", meta.ThesisID).Int("iteration", meta.Iteration).Msg("review document rendered")

	return result.FileURL, nil
}
