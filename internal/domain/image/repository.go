package image

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines persistence for images and their version ledgers.
// Implementations must commit a version row and the latest pointer as
// one atomic unit so readers never observe a half-published append.
type Repository interface {
	// CreateImage persists an image together with its seed version (version 1)
	CreateImage(ctx context.Context, img *Image, seed *Version) error
	GetImage(ctx context.Context, id uuid.UUID) (*Image, error)
	ListImages(ctx context.Context) ([]*Image, error)
	// DeleteImage removes the image and its entire ledger
	DeleteImage(ctx context.Context, id uuid.UUID) error

	// AppendVersion inserts a version and advances the image's latest pointer
	AppendVersion(ctx context.Context, v *Version) error
	GetVersion(ctx context.Context, imageID uuid.UUID, versionID int) (*Version, error)
	GetLatestVersion(ctx context.Context, imageID uuid.UUID) (*Version, error)
	ListVersions(ctx context.Context, imageID uuid.UUID) ([]*Version, error)

	// ListBlobKeys returns every content and thumbnail key referenced by
	// any version. Used by the sweeper to spare live blobs.
	ListBlobKeys(ctx context.Context) ([]string, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id UUID PRIMARY KEY,
	filename TEXT NOT NULL,
	latest_version INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS image_versions (
	image_id UUID NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	version_id INT NOT NULL,
	content_key TEXT NOT NULL,
	thumbnail_key TEXT NOT NULL,
	origin TEXT NOT NULL,
	transformation TEXT NOT NULL DEFAULT '',
	source_version INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (image_id, version_id)
);
`

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a Postgres-backed repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// EnsureSchema creates the images tables if they don't exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

func (r *postgresRepository) CreateImage(ctx context.Context, img *Image, seed *Version) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO images (id, filename, latest_version, created_at)
		VALUES ($1, $2, $3, $4)
	`, img.ID, img.Filename, seed.VersionID, img.CreatedAt)
	if err != nil {
		return err
	}

	if err := insertVersion(ctx, tx, seed); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *postgresRepository) GetImage(ctx context.Context, id uuid.UUID) (*Image, error) {
	var img Image
	err := r.db.GetContext(ctx, &img, `SELECT * FROM images WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &img, nil
}

func (r *postgresRepository) ListImages(ctx context.Context) ([]*Image, error) {
	var images []*Image
	err := r.db.SelectContext(ctx, &images, `SELECT * FROM images ORDER BY created_at DESC`)
	return images, err
}

func (r *postgresRepository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	// image_versions rows go with the image via ON DELETE CASCADE
	_, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	return err
}

func (r *postgresRepository) AppendVersion(ctx context.Context, v *Version) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertVersion(ctx, tx, v); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE images SET latest_version = $2 WHERE id = $1
	`, v.ImageID, v.VersionID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *postgresRepository) GetVersion(ctx context.Context, imageID uuid.UUID, versionID int) (*Version, error) {
	var v Version
	err := r.db.GetContext(ctx, &v, `
		SELECT * FROM image_versions WHERE image_id = $1 AND version_id = $2
	`, imageID, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *postgresRepository) GetLatestVersion(ctx context.Context, imageID uuid.UUID) (*Version, error) {
	var v Version
	err := r.db.GetContext(ctx, &v, `
		SELECT v.* FROM image_versions v
		JOIN images i ON i.id = v.image_id AND i.latest_version = v.version_id
		WHERE v.image_id = $1
	`, imageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *postgresRepository) ListVersions(ctx context.Context, imageID uuid.UUID) ([]*Version, error) {
	var versions []*Version
	err := r.db.SelectContext(ctx, &versions, `
		SELECT * FROM image_versions WHERE image_id = $1 ORDER BY version_id ASC
	`, imageID)
	return versions, err
}

func (r *postgresRepository) ListBlobKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.SelectContext(ctx, &keys, `
		SELECT content_key FROM image_versions
		UNION
		SELECT thumbnail_key FROM image_versions
	`)
	return keys, err
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, v *Version) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO image_versions (
			image_id, version_id, content_key, thumbnail_key,
			origin, transformation, source_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		v.ImageID, v.VersionID, v.ContentKey, v.ThumbnailKey,
		v.Origin, v.Transformation, v.SourceVersion, v.CreatedAt,
	)
	return err
}
