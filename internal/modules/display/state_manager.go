package display

import (
	"sync"
	"time"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
)

// SourceLine is one per-source row of the rendered view
type SourceLine struct {
	Name       string `json:"name"`
	Total      string `json:"total"`
	Incomplete bool   `json:"incomplete"`
}

// View is the text rendering of the latest pass
type View struct {
	Total       string       `json:"total"`
	Currency    string       `json:"currency"`
	Sources     []SourceLine `json:"sources"`
	LastUpdated string       `json:"last_updated"`
	Updated     string       `json:"updated"`
	Incomplete  bool         `json:"incomplete"`
	Hidden      bool         `json:"hidden"`
	Error       string       `json:"error,omitempty"`
}

// StateManager holds the latest summary in memory and renders it.
// Nothing is persisted; a restart starts empty.
type StateManager struct {
	log        zerolog.Logger
	currency   string
	hideValues bool
	summary    *domain.PortfolioSummary
	lastErr    error
	updatedAt  time.Time
	now        func() time.Time
	mu         sync.RWMutex
}

// NewStateManager creates an empty state for the given reporting currency
func NewStateManager(currency string, hideValues bool, log zerolog.Logger) *StateManager {
	return &StateManager{
		log:        log.With().Str("component", "display_state").Logger(),
		currency:   currency,
		hideValues: hideValues,
		now:        time.Now,
	}
}

// Update records the outcome of a pass. A failed pass keeps the previous
// summary so the last good breakdown stays available. A summary generated
// before the stored one is discarded, so overlapping refreshes that finish
// out of order never roll the state back. Update reports whether the
// outcome was applied.
func (m *StateManager) Update(summary *domain.PortfolioSummary, err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.lastErr = err
		m.log.Debug().Err(err).Msg("Recorded failed pass")
		return true
	}
	if m.summary != nil && summary.GeneratedAt.Before(m.summary.GeneratedAt) {
		m.log.Debug().
			Str("pass_id", summary.PassID).
			Str("current_pass_id", m.summary.PassID).
			Msg("Discarded summary older than the current one")
		return false
	}

	m.lastErr = nil
	m.summary = summary
	m.updatedAt = summary.GeneratedAt
	if m.updatedAt.IsZero() {
		m.updatedAt = m.now()
	}
	if summary.Currency != "" {
		m.currency = summary.Currency
	}
	return true
}

// Summary returns the last successful summary, or nil
func (m *StateManager) Summary() *domain.PortfolioSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

// LastError returns the error of the most recent pass, if it failed
func (m *StateManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// SetHideValues toggles value masking
func (m *StateManager) SetHideValues(hide bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hideValues = hide
}

// HideValues reports whether values are masked
func (m *StateManager) HideValues() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hideValues
}

// View renders the current state
func (m *StateManager) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view := View{
		Currency:    m.currency,
		Hidden:      m.hideValues,
		LastUpdated: FormatTimestamp(m.updatedAt),
		Updated:     RelativeTime(m.updatedAt, m.now()),
		Sources:     []SourceLine{},
	}
	if m.lastErr != nil {
		view.Error = m.lastErr.Error()
	}

	if m.summary == nil || m.lastErr != nil {
		view.Total = FailedTotal
		if m.hideValues {
			view.Total = Masked
		}
		return view
	}

	view.Total = m.amount(m.summary.TotalValue, m.summary.Currency)
	view.Incomplete = m.summary.Incomplete
	for _, src := range m.summary.Sources {
		line := SourceLine{Name: src.Name, Incomplete: src.Incomplete}
		if src.Error != "" {
			line.Total = FailedTotal
		} else {
			line.Total = m.amount(src.Total, m.summary.Currency)
		}
		view.Sources = append(view.Sources, line)
	}

	return view
}

func (m *StateManager) amount(value float64, currency string) string {
	if m.hideValues {
		return Masked
	}
	return FormatTotal(value, currency)
}
