package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/portfoliowidget/internal/modules/display"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SourceLister reports the configured holding sources
type SourceLister interface {
	Sources() []string
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	Goroutines    int      `json:"goroutines"`
	Sources       []string `json:"sources"`
	LastPassID    string   `json:"last_pass_id,omitempty"`
	LastUpdated   string   `json:"last_updated"`
	LastError     string   `json:"last_error,omitempty"`
}

// SystemHandlers serves process and pass status
type SystemHandlers struct {
	log       zerolog.Logger
	sources   SourceLister
	state     *display.StateManager
	startedAt time.Time
	stats     func() (float64, float64)
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, sources SourceLister, state *display.StateManager) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		sources:   sources,
		state:     state,
		startedAt: time.Now(),
	}
	h.stats = h.getSystemStats
	return h
}

// HandleSystemStatus returns uptime, host load and the state of the last pass
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.stats()

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Sources:       []string{},
		LastUpdated:   display.NotAvailable,
	}
	if h.sources != nil {
		response.Sources = append(response.Sources, h.sources.Sources()...)
	}

	if h.state != nil {
		if summary := h.state.Summary(); summary != nil {
			response.LastPassID = summary.PassID
			response.LastUpdated = display.FormatTimestamp(summary.GeneratedAt)
		}
		if err := h.state.LastError(); err != nil {
			response.Status = "degraded"
			response.LastError = err.Error()
		}
	}

	h.writeJSON(w, response)
}

// getSystemStats calculates CPU and RAM usage percentages over a short
// sampling window so the call does not block for long
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
