// Package handlers provides HTTP handlers for portfolio valuation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/modules/display"
	"github.com/rs/zerolog"
)

var errInvalidDust = errors.New("dust must be a non-negative number")

// Runner executes one valuation pass
type Runner interface {
	Run(ctx context.Context, target string, dustThreshold float64) (*domain.PortfolioSummary, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	runner Runner
	state  *display.StateManager
	target string
	dust   float64
	log    zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(runner Runner, state *display.StateManager, target string, dust float64, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		state:  state,
		target: target,
		dust:   dust,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

// Refresh runs a pass with the configured target and threshold and stores
// the outcome. The scheduler calls this too.
func (h *Handler) Refresh(ctx context.Context) (*domain.PortfolioSummary, error) {
	summary, err := h.runner.Run(ctx, h.target, h.dust)
	if ctx.Err() == nil {
		h.state.Update(summary, err)
	}
	return summary, err
}

// HandleGetSummary returns the last summary, running a pass if there is none.
// Query parameters target and dust run an ad hoc pass that is not stored.
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	target, dust, adhoc, err := h.passParams(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if adhoc {
		summary, err := h.runner.Run(r.Context(), target, dust)
		if err != nil {
			h.writeRunError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, summary)
		return
	}

	if summary := h.state.Summary(); summary != nil {
		h.writeJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := h.Refresh(r.Context())
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleRefresh runs a pass now and returns it
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Refresh(r.Context())
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.log.Info().
		Str("pass_id", summary.PassID).
		Float64("total", summary.TotalValue).
		Msg("Manual refresh completed")
	h.writeJSON(w, http.StatusOK, summary)
}

// HandleGetDisplay returns the formatted strings for the widget
func (h *Handler) HandleGetDisplay(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.state.View())
}

// HandleSetVisibility toggles value masking: {"hide_values": true}
func (h *Handler) HandleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HideValues *bool `json:"hide_values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HideValues == nil {
		h.writeError(w, http.StatusBadRequest, "expected {\"hide_values\": bool}")
		return
	}

	h.state.SetHideValues(*req.HideValues)
	h.writeJSON(w, http.StatusOK, h.state.View())
}

func (h *Handler) passParams(r *http.Request) (string, float64, bool, error) {
	q := r.URL.Query()
	target, dust := h.target, h.dust
	adhoc := false

	if v := strings.TrimSpace(q.Get("target")); v != "" && !strings.EqualFold(v, h.target) {
		target = strings.ToUpper(v)
		adhoc = true
	}
	if v := q.Get("dust"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return "", 0, false, errInvalidDust
		}
		if parsed != h.dust {
			dust = parsed
			adhoc = true
		}
	}
	return target, dust, adhoc, nil
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsAuth(err):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	h.log.Error().Err(err).Int("status", status).Msg("Valuation pass failed")
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
