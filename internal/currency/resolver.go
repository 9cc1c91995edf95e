package currency

import (
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/fields"
	"github.com/rs/zerolog"
)

// Step of the resolution that produced a currency
const (
	StepExplicit = "explicit"
	StepNested   = "nested"
	StepTicker   = "ticker"
	StepTarget   = "target"
)

var (
	explicitKeys     = []string{"currencyCode", "currency", "currency_code", "curr", "ccy", "instrumentCurrency"}
	nestedObjectKeys = []string{"price", "value", "currentPrice", "marketValue", "walletImpact", "instrument"}
	nestedKeys       = []string{"currency", "currencyCode", "code", "curr"}
	tickerKeys       = []string{"ticker", "symbol", "instrument_code"}
)

// Resolver determines the native currency of raw holdings
type Resolver struct {
	log zerolog.Logger
}

// NewResolver creates a currency resolver
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{log: log.With().Str("component", "currency_resolver").Logger()}
}

// Resolve returns the native currency of h. Precedence is fixed: an explicit
// currency field, then a currency inside a nested price/value object, then
// inference from the ticker, then target. A candidate that fails validation
// falls through to the next step.
func (r *Resolver) Resolve(h domain.RawHolding, target string) string {
	code, _ := r.ResolveWithStep(h, target)
	return code
}

// ResolveWithStep is Resolve plus the name of the step that matched
func (r *Resolver) ResolveWithStep(h domain.RawHolding, target string) (string, string) {
	if code, ok := r.firstValid(h.CurrencyHint, explicitKeys, h.Symbol, StepExplicit); ok {
		return code, StepExplicit
	}

	for _, key := range nestedObjectKeys {
		nested, ok := fields.Object(h.CurrencyHint, key)
		if !ok {
			continue
		}
		if code, ok := r.firstValid(nested, nestedKeys, h.Symbol, StepNested); ok {
			return code, StepNested
		}
	}

	for _, ticker := range r.tickers(h) {
		if code, ok := InferFromTicker(ticker); ok {
			return code, StepTicker
		}
	}

	return target, StepTarget
}

// ResolveHolding attaches the native currency to h
func (r *Resolver) ResolveHolding(h domain.RawHolding, target string) domain.ResolvedHolding {
	return domain.ResolvedHolding{RawHolding: h, NativeCurrency: r.Resolve(h, target)}
}

// firstValid tries each key on its own so an invalid value under one key
// does not hide a valid code under a later one
func (r *Resolver) firstValid(record interface{}, keys []string, symbol, step string) (string, bool) {
	for _, key := range keys {
		code, ok := fields.FlatCurrencyCode(record, key)
		if !ok {
			continue
		}
		if normalized, ok := Normalize(code); ok {
			return normalized, true
		}
		r.log.Debug().
			Str("symbol", symbol).
			Str("key", key).
			Str("candidate", code).
			Str("step", step).
			Msg("Rejected currency candidate")
	}
	return "", false
}

func (r *Resolver) tickers(h domain.RawHolding) []string {
	out := make([]string, 0, 2)
	if ticker, ok := fields.FlatString(h.CurrencyHint, tickerKeys...); ok {
		out = append(out, ticker)
	}
	if h.Symbol != "" && (len(out) == 0 || out[0] != h.Symbol) {
		out = append(out, h.Symbol)
	}
	return out
}
