package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/summary", h.HandleGetSummary)       // Last summary, or an ad hoc pass with ?target=&dust=
		r.Post("/refresh", h.HandleRefresh)         // Run a pass now
		r.Get("/display", h.HandleGetDisplay)       // Formatted widget strings
		r.Put("/visibility", h.HandleSetVisibility) // Toggle value masking
	})
}
