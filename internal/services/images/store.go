// -----------------------------------------------------------------------
// Image Store - Durable promotion of ephemeral generated images
// -----------------------------------------------------------------------

package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/interfaces"
)

// Store promotes generated images to durable storage. Generation backends
// return ephemeral URLs (provider-hosted links that expire, or local staging
// paths); Store downloads or moves the bytes under its own directory and
// returns a stable public URL.
//
// The fallback ladder, in order:
//  1. generated image promoted to durable storage (normal case)
//  2. re-upload failed: the ephemeral URL is used as-is, with a warning
//  3. generation failed entirely: the stock placeholder is used
//
// No rung of the ladder fails the calling job.
type Store struct {
	generator   interfaces.ImageService
	dir         string
	publicBase  string
	placeholder string
	fetchLimit  int64
	client      *http.Client
	logger      arbor.ILogger
}

// NewStore creates an image store backed by the given generator
func NewStore(generator interfaces.ImageService, cfg *common.ImagesConfig, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory %s: %w", cfg.Dir, err)
	}

	fetchLimit := int64(cfg.FetchLimit)
	if fetchLimit <= 0 {
		fetchLimit = 10 * 1024 * 1024
	}

	return &Store{
		generator:   generator,
		dir:         cfg.Dir,
		publicBase:  strings.TrimRight(cfg.PublicBase, "/"),
		placeholder: cfg.Placeholder,
		fetchLimit:  fetchLimit,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}, nil
}

// Placeholder returns the stock fallback URL
func (s *Store) Placeholder() string {
	return s.placeholder
}

// GenerateAndStore generates an image and promotes it to durable storage.
// It always returns a usable URL; the error is informational only and the
// caller should log it rather than propagate it.
func (s *Store) GenerateAndStore(ctx context.Context, prompt, headline string) (string, error) {
	ephemeral, err := s.generator.GenerateImage(ctx, prompt, headline)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("headline", headline).
			Msg("Image generation failed, using placeholder")
		return s.placeholder, err
	}

	durable, err := s.Promote(ctx, ephemeral, headline)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("headline", headline).
			Msg("Image re-upload failed, keeping ephemeral URL")
		return ephemeral, nil
	}
	return durable, nil
}

// Promote moves an ephemeral image under the store's directory and returns
// its public URL. Local staging paths are renamed; http(s) URLs are
// downloaded with the configured byte cap.
func (s *Store) Promote(ctx context.Context, ephemeral, headline string) (string, error) {
	name := s.fileName(ephemeral, headline)
	dest := filepath.Join(s.dir, name)

	if strings.HasPrefix(ephemeral, "http://") || strings.HasPrefix(ephemeral, "https://") {
		if err := s.download(ctx, ephemeral, dest); err != nil {
			return "", err
		}
	} else {
		if err := moveFile(ephemeral, dest); err != nil {
			return "", fmt.Errorf("failed to move staged image %s: %w", ephemeral, err)
		}
	}

	return s.publicBase + "/" + name, nil
}

func (s *Store) fileName(ephemeral, headline string) string {
	ext := filepath.Ext(ephemeral)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if ext == "" || len(ext) > 5 {
		ext = ".png"
	}

	slug := common.Slugify(headline)
	if slug == "" {
		slug = "image"
	}
	return fmt.Sprintf("%s-%s%s", slug, uuid.New().String()[:8], ext)
}

func (s *Store) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build image request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(resp.Body, s.fetchLimit+1))
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to write image file: %w", err)
	}
	if n > s.fetchLimit {
		os.Remove(dest)
		return fmt.Errorf("image exceeds fetch limit of %d bytes", s.fetchLimit)
	}
	return nil
}

// moveFile renames when possible and falls back to copy+remove for
// cross-device staging directories.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return err
	}
	in.Close()
	return os.Remove(src)
}
