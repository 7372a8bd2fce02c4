package reconcile

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/propose", h.Propose)
	r.Post("/apply", h.Apply)
	r.Post("/unmatch", h.Unmatch)
	r.Post("/status", h.Status)
}
