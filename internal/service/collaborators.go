package service

import (
	"context"
	"encoding/json"
	"io"

	"github.com/akademia-dev/thesis-review-api/pkg/renderer"
	"github.com/akademia-dev/thesis-review-api/pkg/similarity"
)

// FileStorage abstracts the external file store. Implemented by
// pkg/cloudinary in production.
type FileStorage interface {
	Upload(ctx context.Context, kind, name string, reader io.Reader) (string, error)
}

// SimilarityOracle abstracts the external plagiarism-scoring service.
// Implemented by pkg/similarity in production.
type SimilarityOracle interface {
	Score(ctx context.Context, fileURL string) (similarity.Result, error)
}

// DocumentRenderer abstracts the external review-document renderer.
// Implemented by pkg/renderer in production.
type DocumentRenderer interface {
	Render(ctx context.Context, rubric json.RawMessage, meta renderer.Metadata) (string, error)
}

// Artifact kinds used when storing documents.
const (
	artifactKindThesis       = "submissions"
	artifactKindSignedReview = "reviews/signed"
)
