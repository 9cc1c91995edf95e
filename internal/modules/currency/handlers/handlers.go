// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles currency HTTP requests
type Handler struct {
	rates *services.ExchangeRateFactory
	log   zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(rates *services.ExchangeRateFactory, log zerolog.Logger) *Handler {
	return &Handler{
		rates: rates,
		log:   log.With().Str("handler", "currency").Logger(),
	}
}

// ConvertRequest represents a request to convert currency
type ConvertRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
}

// HandleConvert handles POST /api/currency/convert.
// Each request resolves rates with a fresh cache, like a pass.
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	from, okFrom := currency.Normalize(req.FromCurrency)
	to, okTo := currency.Normalize(req.ToCurrency)
	if !okFrom || !okTo {
		http.Error(w, "from_currency and to_currency must be currency codes", http.StatusBadRequest)
		return
	}

	if req.Amount <= 0 {
		http.Error(w, "amount must be greater than 0", http.StatusBadRequest)
		return
	}

	svc := h.rates.NewPass("")
	converted, err := svc.Convert(r.Context(), req.Amount, from, to)
	if err != nil {
		status := http.StatusBadGateway
		if !domain.IsFxUnavailable(err) {
			status = http.StatusInternalServerError
		}
		h.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Failed to convert")
		h.writeJSON(w, status, map[string]interface{}{
			"error": err.Error(),
			"metadata": map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"from_currency": from,
			"to_currency":   to,
			"from_amount":   req.Amount,
			"to_amount":     converted,
			"rates":         svc.Rates(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetFallbackChain handles GET /api/currency/rates/fallback-chain
func (h *Handler) HandleGetFallbackChain(w http.ResponseWriter, r *http.Request) {
	providers := h.rates.Providers()
	chain := make([]map[string]interface{}, 0, len(providers))
	for i, p := range providers {
		chain = append(chain, map[string]interface{}{
			"priority": i + 1,
			"name":     p.Name(),
		})
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"chain": chain,
			"count": len(chain),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleValidate handles GET /api/currency/validate/{code}
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "code")
	code, ok := currency.Normalize(raw)

	data := map[string]interface{}{
		"input": raw,
		"valid": ok,
	}
	if ok {
		major, factor := currency.Major(code)
		data["code"] = code
		data["major"] = major
		data["factor"] = factor
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
