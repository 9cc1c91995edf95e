package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all currency routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/currency", func(r chi.Router) {
		// Conversion
		r.Post("/convert", h.HandleConvert)
		r.Get("/validate/{code}", h.HandleValidate)

		// Rate sources
		r.Get("/rates/fallback-chain", h.HandleGetFallbackChain)
	})
}
