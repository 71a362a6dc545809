package image

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pixvault/pixvault-api/internal/pkg/response"
	"github.com/pixvault/pixvault-api/internal/pkg/storage"
	"github.com/pixvault/pixvault-api/internal/pkg/validator"
)

// Handler handles image HTTP requests
type Handler struct {
	service  *Service
	blobs    storage.Storage
	basePath string
	maxBytes int64
}

// NewHandler creates an image handler.
// basePath is the public mount point of this router (e.g. /images).
func NewHandler(service *Service, blobs storage.Storage, basePath string, maxUploadMB int) *Handler {
	return &Handler{
		service:  service,
		blobs:    blobs,
		basePath: basePath,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// Upload handles POST /images/upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File exceeds maximum allowed size")
			return
		}
		response.BadRequest(w, "Malformed multipart body")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		response.BadRequest(w, "File is required")
		return
	}
	defer file.Close()

	if err := ValidateFilename(header.Filename); err != nil {
		response.BadRequest(w, "Invalid file extension. Only JPEG, JPG, and PNG are allowed.")
		return
	}

	img, _, err := h.service.Create(r.Context(), header.Filename, file)
	if err != nil {
		h.handleError(w, err)
		return
	}

	response.Created(w, ImageResponseFromEntity(img, h.basePath))
}

// List handles GET /images/
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.service.List(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	items := make([]*ImageResponse, len(images))
	for i, img := range images {
		items[i] = ImageResponseFromEntity(img, h.basePath)
	}
	response.OK(w, items)
}

// GetByID handles GET /images/{id}
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	img, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	response.OK(w, ImageResponseFromEntity(img, h.basePath))
}

// Delete handles DELETE /images/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.handleError(w, err)
		return
	}
	response.NoContent(w)
}

// Edit handles POST /images/edit/{id}
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	v, err := h.service.Edit(r.Context(), id, req.Transformation)
	if err != nil {
		h.handleError(w, err)
		return
	}
	response.OK(w, VersionResponseFromEntity(v, h.blobs))
}

// Versions handles GET /images/versions/{id}
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	versions, latest, err := h.service.Versions(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	items := make([]*VersionResponse, len(versions))
	for i, v := range versions {
		items[i] = VersionResponseFromEntity(v, h.blobs)
	}
	response.OK(w, &VersionsResponse{
		Versions: items,
		Latest:   VersionResponseFromEntity(latest, h.blobs),
	})
}

// Revert handles POST /images/revert/{id}/{versionID}
func (h *Handler) Revert(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	versionID, ok := h.versionID(w, r)
	if !ok {
		return
	}

	v, err := h.service.Revert(r.Context(), id, versionID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	response.OK(w, VersionResponseFromEntity(v, h.blobs))
}

// ServeLatest handles GET /images/serve/latest/{id}
func (h *Handler) ServeLatest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	rc, err := h.service.ServeLatest(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.stream(w, rc)
}

// ServeLatestThumbnail handles GET /images/serve/latest-thumbnail/{id}
func (h *Handler) ServeLatestThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}

	rc, err := h.service.ServeLatestThumbnail(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.stream(w, rc)
}

// ServeVersionThumbnail handles GET /images/serve/thumbnail/{id}/{versionID}
func (h *Handler) ServeVersionThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.imageID(w, r)
	if !ok {
		return
	}
	versionID, ok := h.versionID(w, r)
	if !ok {
		return
	}

	rc, err := h.service.ServeVersionThumbnail(r.Context(), id, versionID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	h.stream(w, rc)
}

func (h *Handler) stream(w http.ResponseWriter, rc io.ReadCloser) {
	defer rc.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := io.Copy(w, rc); err != nil {
		log.Error().Err(err).Msg("Failed to stream image")
	}
}

func (h *Handler) imageID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid image ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) versionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, "versionID"))
	if err != nil || v < 1 {
		response.BadRequest(w, "Invalid version ID")
		return 0, false
	}
	return v, true
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrImageNotFound):
		response.NotFound(w, "Image not found")
	case errors.Is(err, ErrVersionNotFound):
		response.NotFound(w, "Version not found")
	case errors.Is(err, ErrUnknownTransformation):
		response.BadRequest(w, "Invalid transformation")
	case errors.Is(err, ErrInvalidFile):
		response.BadRequest(w, "Invalid file")
	case errors.Is(err, ErrTransformFailed):
		response.UnprocessableEntity(w, "TRANSFORM_FAILED", "Image could not be processed")
	case errors.Is(err, ErrStorageFailed):
		log.Error().Err(err).Msg("Blob storage failure")
		response.BadGateway(w, "Storage unavailable, please retry")
	default:
		log.Error().Err(err).Msg("Unexpected error")
		response.InternalError(w)
	}
}
