package image

import (
	"time"

	"github.com/pixvault/pixvault-api/internal/pkg/storage"
)

// EditRequest is the body of POST /images/edit/{id}
type EditRequest struct {
	Transformation string `json:"transformation" validate:"required,transformation"`
}

// ImageResponse is the public representation of an image
type ImageResponse struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	LatestVersion int       `json:"latest_version"`
	URL           string    `json:"url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// VersionResponse is the public representation of a version
type VersionResponse struct {
	VersionID      int       `json:"version_id"`
	Origin         Origin    `json:"origin"`
	Transformation string    `json:"transformation,omitempty"`
	SourceVersion  int       `json:"source_version,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// VersionsResponse lists a ledger with its published latest version
type VersionsResponse struct {
	Versions []*VersionResponse `json:"versions"`
	Latest   *VersionResponse   `json:"latest_version"`
}

// ImageResponseFromEntity builds an ImageResponse. The URLs point at the
// serve endpoints so readers always observe the published latest version.
func ImageResponseFromEntity(img *Image, basePath string) *ImageResponse {
	return &ImageResponse{
		ID:            img.ID.String(),
		Filename:      img.Filename,
		LatestVersion: img.LatestVersion,
		URL:           basePath + "/serve/latest/" + img.ID.String(),
		ThumbnailURL:  basePath + "/serve/latest-thumbnail/" + img.ID.String(),
		CreatedAt:     img.CreatedAt,
	}
}

// VersionResponseFromEntity builds a VersionResponse
func VersionResponseFromEntity(v *Version, blobs storage.Storage) *VersionResponse {
	return &VersionResponse{
		VersionID:      v.VersionID,
		Origin:         v.Origin,
		Transformation: v.Transformation,
		SourceVersion:  v.SourceVersion,
		ThumbnailURL:   blobs.GetURL(v.ThumbnailKey),
		CreatedAt:      v.CreatedAt,
	}
}
