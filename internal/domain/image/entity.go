package image

import (
	"time"

	"github.com/google/uuid"
)

// Origin records how a version was produced
type Origin string

const (
	OriginInitial Origin = "initial" // Seeded at upload
	OriginEdit    Origin = "edit"    // Produced by a transformation
	OriginRevert  Origin = "revert"  // Copy of a historical version
)

// Image is a logical artifact with an evolving version history.
// Identity, filename and creation time never change after upload.
type Image struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Filename      string    `db:"filename" json:"filename"`
	LatestVersion int       `db:"latest_version" json:"latest_version"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Version is one immutable, fully materialized state of an image.
// Version IDs are dense integers starting at 1, strictly increasing
// per image, never reused or reordered.
type Version struct {
	ImageID      uuid.UUID `db:"image_id" json:"image_id"`
	VersionID    int       `db:"version_id" json:"version_id"`
	ContentKey   string    `db:"content_key" json:"content_key"`
	ThumbnailKey string    `db:"thumbnail_key" json:"thumbnail_key"`
	Origin       Origin    `db:"origin" json:"origin"`

	// Transformation is set when Origin is edit
	Transformation string `db:"transformation" json:"transformation,omitempty"`

	// SourceVersion is set when Origin is revert
	SourceVersion int `db:"source_version" json:"source_version,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsInitial returns true for the version seeded at upload
func (v *Version) IsInitial() bool {
	return v.Origin == OriginInitial
}
