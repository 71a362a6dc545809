package image

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixvault/pixvault-api/internal/pkg/imaging"
	"github.com/pixvault/pixvault-api/internal/pkg/storage"
)

// Ledger owns the append-only version history of every image.
//
// All mutations on one image are serialized through a per-image lock;
// mutations on different images run in parallel. Blob writes always
// complete before the version row and latest pointer are committed, so
// a reader can never resolve a published version to missing blobs.
type Ledger struct {
	repo   Repository
	blobs  storage.Storage
	engine *imaging.Engine

	mu    sync.Mutex
	locks map[uuid.UUID]*imageLock
}

type imageLock struct {
	sync.Mutex
	refs int
}

// NewLedger creates a version ledger
func NewLedger(repo Repository, blobs storage.Storage, engine *imaging.Engine) *Ledger {
	return &Ledger{
		repo:   repo,
		blobs:  blobs,
		engine: engine,
		locks:  make(map[uuid.UUID]*imageLock),
	}
}

// lock acquires the mutation lock for one image and returns its release func
func (l *Ledger) lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &imageLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Seed materializes version 1 for a new image and persists the image
// record together with it. The image is not visible until both blobs
// and the record are durable.
func (l *Ledger) Seed(ctx context.Context, img *Image, content []byte) (*Version, error) {
	v, err := l.materialize(ctx, img.ID, 1, content)
	if err != nil {
		return nil, err
	}
	v.Origin = OriginInitial

	if err := l.repo.CreateImage(ctx, img, v); err != nil {
		l.discardBlobs(ctx, v)
		return nil, fmt.Errorf("%w: create image record: %v", ErrStorageFailed, err)
	}
	img.LatestVersion = v.VersionID
	return v, nil
}

// Edit transforms the current latest content and appends the result
// as a new version
func (l *Ledger) Edit(ctx context.Context, imageID uuid.UUID, kind imaging.Kind) (*Version, error) {
	unlock := l.lock(imageID)
	defer unlock()

	latest, err := l.latestLocked(ctx, imageID)
	if err != nil {
		return nil, err
	}

	content, err := l.readBlob(ctx, latest.ContentKey)
	if err != nil {
		return nil, err
	}

	transformed, err := l.engine.Apply(content, kind)
	if err != nil {
		if errors.Is(err, imaging.ErrUnknownKind) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransformation, kind)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}

	return l.append(ctx, imageID, latest.VersionID, transformed, &Version{
		Origin:         OriginEdit,
		Transformation: string(kind),
	})
}

// Revert replays a historical version's content as a brand-new version.
// History is never rewound; the ledger only grows.
func (l *Ledger) Revert(ctx context.Context, imageID uuid.UUID, targetVersion int) (*Version, error) {
	unlock := l.lock(imageID)
	defer unlock()

	target, err := l.repo.GetVersion(ctx, imageID, targetVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: version %d", ErrVersionNotFound, targetVersion)
	}

	latest, err := l.latestLocked(ctx, imageID)
	if err != nil {
		return nil, err
	}

	content, err := l.readBlob(ctx, target.ContentKey)
	if err != nil {
		return nil, err
	}

	return l.append(ctx, imageID, latest.VersionID, content, &Version{
		Origin:        OriginRevert,
		SourceVersion: targetVersion,
	})
}

// Latest returns the currently published latest version
func (l *Ledger) Latest(ctx context.Context, imageID uuid.UUID) (*Version, error) {
	v, err := l.repo.GetLatestVersion(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
	}
	return v, nil
}

// Version returns one historical version
func (l *Ledger) Version(ctx context.Context, imageID uuid.UUID, versionID int) (*Version, error) {
	v, err := l.repo.GetVersion(ctx, imageID, versionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if v == nil {
		return nil, fmt.Errorf("%w: version %d", ErrVersionNotFound, versionID)
	}
	return v, nil
}

// List returns the full history ascending by version id
func (l *Ledger) List(ctx context.Context, imageID uuid.UUID) ([]*Version, error) {
	versions, err := l.repo.ListVersions(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	return versions, nil
}

// DeleteAll removes every version's blobs and the ledger itself.
// If any blob delete fails the record is retained so no image
// reference outlives its blobs.
func (l *Ledger) DeleteAll(ctx context.Context, imageID uuid.UUID) error {
	unlock := l.lock(imageID)
	defer unlock()

	versions, err := l.repo.ListVersions(ctx, imageID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	for _, v := range versions {
		if err := l.blobs.Delete(ctx, v.ContentKey); err != nil {
			return fmt.Errorf("%w: delete content blob: %v", ErrStorageFailed, err)
		}
		if err := l.blobs.Delete(ctx, v.ThumbnailKey); err != nil {
			return fmt.Errorf("%w: delete thumbnail blob: %v", ErrStorageFailed, err)
		}
	}

	if err := l.repo.DeleteImage(ctx, imageID); err != nil {
		return fmt.Errorf("%w: delete image record: %v", ErrStorageFailed, err)
	}
	return nil
}

// append writes blobs for the next version and commits the version row
// plus the pointer advance. Caller must hold the image lock.
func (l *Ledger) append(ctx context.Context, imageID uuid.UUID, latestID int, content []byte, meta *Version) (*Version, error) {
	v, err := l.materialize(ctx, imageID, latestID+1, content)
	if err != nil {
		return nil, err
	}
	v.Origin = meta.Origin
	v.Transformation = meta.Transformation
	v.SourceVersion = meta.SourceVersion

	if err := l.repo.AppendVersion(ctx, v); err != nil {
		l.discardBlobs(ctx, v)
		return nil, fmt.Errorf("%w: append version record: %v", ErrStorageFailed, err)
	}
	return v, nil
}

// materialize derives the thumbnail and writes both blobs for a version
func (l *Ledger) materialize(ctx context.Context, imageID uuid.UUID, versionID int, content []byte) (*Version, error) {
	thumb, err := l.engine.Thumbnail(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}

	contentKey := blobKey(imageID, versionID, "content")
	thumbKey := blobKey(imageID, versionID, "thumbnail")

	if err := l.blobs.Put(ctx, contentKey, bytes.NewReader(content), "image/jpeg"); err != nil {
		return nil, fmt.Errorf("%w: put content blob: %v", ErrStorageFailed, err)
	}
	if err := l.blobs.Put(ctx, thumbKey, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		_ = l.blobs.Delete(ctx, contentKey)
		return nil, fmt.Errorf("%w: put thumbnail blob: %v", ErrStorageFailed, err)
	}

	return &Version{
		ImageID:      imageID,
		VersionID:    versionID,
		ContentKey:   contentKey,
		ThumbnailKey: thumbKey,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (l *Ledger) latestLocked(ctx context.Context, imageID uuid.UUID) (*Version, error) {
	latest, err := l.repo.GetLatestVersion(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
	}
	return latest, nil
}

func (l *Ledger) readBlob(ctx context.Context, key string) ([]byte, error) {
	rc, err := l.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %v", ErrStorageFailed, key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read blob %s: %v", ErrStorageFailed, key, err)
	}
	return data, nil
}

// discardBlobs best-effort removes blobs of a version that failed to commit.
// A failure here only leaks an unreferenced blob; the sweeper picks it up.
func (l *Ledger) discardBlobs(ctx context.Context, v *Version) {
	_ = l.blobs.Delete(ctx, v.ContentKey)
	_ = l.blobs.Delete(ctx, v.ThumbnailKey)
}

// BlobPrefix is the key namespace all version blobs live under
const BlobPrefix = "images/"

func blobKey(imageID uuid.UUID, versionID int, name string) string {
	return fmt.Sprintf("%s%s/%d/%s.jpg", BlobPrefix, imageID, versionID, name)
}
