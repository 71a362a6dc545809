package image

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// memoryRepository is a mutex-guarded in-memory Repository.
// It backs local development without a database and the test suite.
type memoryRepository struct {
	mu       sync.RWMutex
	images   map[uuid.UUID]*Image
	versions map[uuid.UUID][]*Version
}

// NewMemoryRepository creates an in-memory repository
func NewMemoryRepository() Repository {
	return &memoryRepository{
		images:   make(map[uuid.UUID]*Image),
		versions: make(map[uuid.UUID][]*Version),
	}
}

func (r *memoryRepository) CreateImage(ctx context.Context, img *Image, seed *Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *img
	stored.LatestVersion = seed.VersionID
	seedCopy := *seed

	r.images[img.ID] = &stored
	r.versions[img.ID] = []*Version{&seedCopy}
	return nil
}

func (r *memoryRepository) GetImage(ctx context.Context, id uuid.UUID) (*Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img, ok := r.images[id]
	if !ok {
		return nil, nil
	}
	cp := *img
	return &cp, nil
}

func (r *memoryRepository) ListImages(ctx context.Context) ([]*Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	images := make([]*Image, 0, len(r.images))
	for _, img := range r.images {
		cp := *img
		images = append(images, &cp)
	}
	sort.Slice(images, func(i, j int) bool {
		return images[i].CreatedAt.After(images[j].CreatedAt)
	})
	return images, nil
}

func (r *memoryRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.images, id)
	delete(r.versions, id)
	return nil
}

func (r *memoryRepository) AppendVersion(ctx context.Context, v *Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[v.ImageID]
	if !ok {
		return ErrImageNotFound
	}

	cp := *v
	r.versions[v.ImageID] = append(r.versions[v.ImageID], &cp)
	img.LatestVersion = v.VersionID
	return nil
}

func (r *memoryRepository) GetVersion(ctx context.Context, imageID uuid.UUID, versionID int) (*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.versions[imageID] {
		if v.VersionID == versionID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) GetLatestVersion(ctx context.Context, imageID uuid.UUID) (*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img, ok := r.images[imageID]
	if !ok {
		return nil, nil
	}
	for _, v := range r.versions[imageID] {
		if v.VersionID == img.LatestVersion {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memoryRepository) ListVersions(ctx context.Context, imageID uuid.UUID) ([]*Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.versions[imageID]
	versions := make([]*Version, 0, len(stored))
	for _, v := range stored {
		cp := *v
		versions = append(versions, &cp)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionID < versions[j].VersionID
	})
	return versions, nil
}

func (r *memoryRepository) ListBlobKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for _, versions := range r.versions {
		for _, v := range versions {
			keys = append(keys, v.ContentKey, v.ThumbnailKey)
		}
	}
	return keys, nil
}
