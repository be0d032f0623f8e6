// Package similarity wraps the external plagiarism-similarity oracle. The
// engine consumes it as a scoring service; the comparison algorithm itself
// lives on the other side of the HTTP boundary.
package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "thesis",
		Subsystem: "similarity",
		Name:      "oracle_duration_seconds",
		Help:      "Duration of similarity oracle requests",
	}, []string{"outcome"})

	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "thesis",
		Subsystem: "similarity",
		Name:      "oracle_failures_total",
		Help:      "Number of failed similarity oracle requests",
	}, []string{"kind"})
)

// UnavailableError signals a transient oracle failure. Callers must treat it
// as retryable and must not charge the student's attempt budget for it.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("similarity oracle unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Result is one completed scoring run.
type Result struct {
	SimilarityScore float64 `json:"similarity_score"`
	ReportURL       string  `json:"report_url"`
}

// Config defines connection options for the oracle client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client calls the similarity oracle over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New builds an oracle client from the configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("similarity oracle base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/akademia-dev/thesis-review-api/pkg/similarity"),
		logger:  cfg.Logger.With().Str("component", "similarity_client").Logger(),
	}, nil
}

type scoreRequest struct {
	FileURL string `json:"file_url"`
}

// Score submits the document reference for comparison and returns the
// similarity percentage (0-100) with the report location.
func (c *Client) Score(ctx context.Context, fileURL string) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "similarity.score")
	span.SetAttributes(attribute.String("similarity.file_url", fileURL))
	defer span.End()

	start := time.Now()

	payload, err := json.Marshal(scoreRequest{FileURL: fileURL})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		oracleDuration.WithLabelValues("unreachable").Observe(time.Since(start).Seconds())
		oracleFailures.WithLabelValues("network").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle_unreachable")
		return Result{}, &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		oracleDuration.WithLabelValues("server_error").Observe(time.Since(start).Seconds())
		oracleFailures.WithLabelValues("server").Inc()
		err := fmt.Errorf("oracle returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle_server_error")
		return Result{}, &UnavailableError{Cause: err}
	case resp.StatusCode != http.StatusOK:
		oracleDuration.WithLabelValues("rejected").Observe(time.Since(start).Seconds())
		oracleFailures.WithLabelValues("client").Inc()
		err := fmt.Errorf("oracle rejected request with status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle_rejected")
		return Result{}, err
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		oracleFailures.WithLabelValues("decode").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle_decode_failed")
		return Result{}, &UnavailableError{Cause: err}
	}

	oracleDuration.WithLabelValues("scored").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Float64("similarity.score", result.SimilarityScore))
	c.logger.Debug().Float64("score", result.SimilarityScore).Msg("similarity oracle responded")

	return result, nil
}
