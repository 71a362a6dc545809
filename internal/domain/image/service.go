package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixvault/pixvault-api/internal/pkg/imaging"
	"github.com/pixvault/pixvault-api/internal/pkg/storage"
)

// Service is the image registry plus the read-side serving façade.
// Image-level lifecycle lives here; version-level mutation rules live
// in the Ledger.
type Service struct {
	repo   Repository
	ledger *Ledger
	blobs  storage.Storage
	engine *imaging.Engine
	cache  *ThumbnailCache
}

// NewService creates the image service
func NewService(repo Repository, ledger *Ledger, blobs storage.Storage, engine *imaging.Engine, cache *ThumbnailCache) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		blobs:  blobs,
		engine: engine,
		cache:  cache,
	}
}

// Create registers a new image seeded with version 1 from the uploaded bytes.
// Creation is all-or-nothing: nothing becomes visible unless both blob
// writes and the record commit succeed.
func (s *Service) Create(ctx context.Context, filename string, reader io.Reader) (*Image, *Version, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read upload: %v", ErrStorageFailed, err)
	}

	// Normalize to JPEG so every version shares one format
	normalized, err := s.engine.Normalize(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}

	img := &Image{
		ID:        uuid.New(),
		Filename:  filepath.Base(filename),
		CreatedAt: time.Now().UTC(),
	}

	v, err := s.ledger.Seed(ctx, img, normalized)
	if err != nil {
		return nil, nil, err
	}
	return img, v, nil
}

// Get returns image metadata
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Image, error) {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	return img, nil
}

// List returns all registered images
func (s *Service) List(ctx context.Context) ([]*Image, error) {
	images, err := s.repo.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return images, nil
}

// Delete removes an image, its whole ledger and every referenced blob.
// A partial cascade failure leaves the image visible.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.ledger.DeleteAll(ctx, id)
}

// Edit applies a transformation to the latest version and appends the result
func (s *Service) Edit(ctx context.Context, id uuid.UUID, transformation string) (*Version, error) {
	kind, err := imaging.ParseKind(transformation)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransformation, transformation)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Edit(ctx, id, kind)
}

// Revert appends a copy of a historical version as the new latest
func (s *Service) Revert(ctx context.Context, id uuid.UUID, targetVersion int) (*Version, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledger.Revert(ctx, id, targetVersion)
}

// Versions returns the full history plus the published latest version.
// The latest pointer is read before the list: the ledger only grows, so
// a concurrent append can at most add entries to the list, never leave
// the returned latest dangling outside it.
func (s *Service) Versions(ctx context.Context, id uuid.UUID) ([]*Version, *Version, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, nil, err
	}

	latest, err := s.ledger.Latest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	versions, err := s.ledger.List(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return versions, latest, nil
}

// ServeLatest streams the latest version's full-resolution content
func (s *Service) ServeLatest(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	latest, err := s.ledger.Latest(ctx, id)
	if err != nil {
		return nil, err
	}

	rc, err := s.blobs.Get(ctx, latest.ContentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return rc, nil
}

// ServeLatestThumbnail streams the latest version's thumbnail
func (s *Service) ServeLatestThumbnail(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	latest, err := s.ledger.Latest(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.serveThumbnail(ctx, latest)
}

// ServeVersionThumbnail streams a specific historical version's thumbnail
func (s *Service) ServeVersionThumbnail(ctx context.Context, id uuid.UUID, versionID int) (io.ReadCloser, error) {
	v, err := s.ledger.Version(ctx, id, versionID)
	if err != nil {
		return nil, err
	}
	return s.serveThumbnail(ctx, v)
}

func (s *Service) serveThumbnail(ctx context.Context, v *Version) (io.ReadCloser, error) {
	if data := s.cache.Get(ctx, v.ImageID, v.VersionID); data != nil {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	rc, err := s.blobs.Get(ctx, v.ThumbnailKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	s.cache.Set(ctx, v.ImageID, v.VersionID, data)

	return io.NopCloser(bytes.NewReader(data)), nil
}

// ValidateFilename checks the upload's extension against the allowed set
func ValidateFilename(filename string) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return nil
	default:
		return fmt.Errorf("%w: only JPEG, JPG and PNG are allowed", ErrInvalidFile)
	}
}
