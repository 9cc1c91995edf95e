// Package domain provides core domain models and types.
package domain

import "time"

// DefaultCurrency is the reporting currency used when nothing else is configured
const DefaultCurrency = "EUR"

// RawHolding is one balance or position as emitted by a HoldingSource.
// Amount is always strictly positive; sources drop everything else.
type RawHolding struct {
	Source string  `json:"source"`
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
	// PriceHint multiplies Amount into a native value when present
	PriceHint *float64 `json:"price_hint,omitempty"`
	// CurrencyHint is the source record (or a synthesized one) the currency
	// resolver probes for currency metadata
	CurrencyHint map[string]interface{} `json:"-"`
	// Err marks a holding whose optional sub-lookup failed (e.g. a ticker price).
	// It is valued at zero and flags the pass as incomplete.
	Err error `json:"-"`
}

// NativeValue returns the holding's value in its native currency
func (h RawHolding) NativeValue() float64 {
	if h.PriceHint != nil {
		return h.Amount * *h.PriceHint
	}
	return h.Amount
}

// ResolvedHolding is a RawHolding with its native currency determined
type ResolvedHolding struct {
	RawHolding
	NativeCurrency string `json:"native_currency"`
}

// ExchangeRate is a single resolved FX quote, valid for one pass only
type ExchangeRate struct {
	Base   string  `json:"base"`
	Quote  string  `json:"quote"`
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
}

// HoldingValue is one line of the summary breakdown
type HoldingValue struct {
	Symbol         string  `json:"symbol"`
	Source         string  `json:"source"`
	Value          float64 `json:"value"`
	NativeCurrency string  `json:"native_currency"`
	NativeValue    float64 `json:"native_value"`
}

// SourceTotal is the per-source contribution to a summary
type SourceTotal struct {
	Name       string  `json:"name"`
	Total      float64 `json:"total"`
	Holdings   int     `json:"holdings"`
	Incomplete bool    `json:"incomplete"`
	Error      string  `json:"error,omitempty"`
}

// PortfolioSummary is the result of one valuation pass
type PortfolioSummary struct {
	PassID      string         `json:"pass_id"`
	TotalValue  float64        `json:"total_value"`
	Currency    string         `json:"currency"`
	Holdings    []HoldingValue `json:"holdings"`
	Sources     []SourceTotal  `json:"sources"`
	Incomplete  bool           `json:"incomplete"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Source returns the per-source total with the given name
func (s *PortfolioSummary) Source(name string) (SourceTotal, bool) {
	for _, src := range s.Sources {
		if src.Name == name {
			return src, true
		}
	}
	return SourceTotal{}, false
}

// PassState is the lifecycle state of one valuation pass
type PassState string

const (
	PassIdle        PassState = "idle"
	PassFetching    PassState = "fetching"
	PassResolving   PassState = "resolving"
	PassAggregating PassState = "aggregating"
	PassDone        PassState = "done"
	PassFailed      PassState = "failed"
)

// Terminal reports whether no further transition is allowed
func (s PassState) Terminal() bool {
	return s == PassDone || s == PassFailed
}
