package image

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the image router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload", h.Upload)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	r.Delete("/{id}", h.Delete)

	r.Post("/edit/{id}", h.Edit)
	r.Get("/versions/{id}", h.Versions)
	r.Post("/revert/{id}/{versionID}", h.Revert)

	r.Get("/serve/latest/{id}", h.ServeLatest)
	r.Get("/serve/latest-thumbnail/{id}", h.ServeLatestThumbnail)
	r.Get("/serve/thumbnail/{id}/{versionID}", h.ServeVersionThumbnail)

	return r
}
