package statements

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ListStatements)
	r.Get("/{id}", h.GetStatement)
	r.Get("/{id}/lines", h.ListLines)
	r.Post("/import/csv", h.ImportCSV)
	r.Post("/import/ofx", h.ImportOFX)
}
