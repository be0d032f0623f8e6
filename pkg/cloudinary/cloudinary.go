// Package cloudinary implements the file-store collaborator on top of
// Cloudinary. Thesis documents, plagiarism reports and review artifacts are
// stored as raw assets and referenced by their secure URL.
package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Store uploads workflow documents to Cloudinary.
type Store struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed file store.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := cfg.Folder
	if folder == "" {
		folder = "theses"
	}

	return &Store{
		client: cld,
		folder: folder,
		logger: logger.With().Str("component", "cloudinary_store").Logger(),
	}, nil
}

// Upload stores the document under kind/name and returns its secure URL.
// Thesis files are PDFs, so assets go up with the raw resource type and
// never pass through image transformation.
func (s *Store) Upload(ctx context.Context, kind, name string, reader io.Reader) (string, error) {
	folder := strings.Trim(s.folder, "/")
	if kind != "" {
		folder = folder + "/" + strings.Trim(kind, "/")
	}

	params := uploader.UploadParams{
		Folder:       folder,
		PublicID:     buildPublicID(name),
		ResourceType: "raw",
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("kind", kind).Msg("document stored")

	return result.SecureURL, nil
}

func buildPublicID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "document"
	}

	return fmt.Sprintf("%s-%d", base, time.Now().Unix())
}
