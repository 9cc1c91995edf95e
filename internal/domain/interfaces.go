package domain

import "context"

// HoldingSource fetches the user's holdings from one upstream account.
// Implementations return *AuthError, *NetworkError or *ParseError.
type HoldingSource interface {
	Name() string
	Fetch(ctx context.Context, targetCurrency string) ([]RawHolding, error)
}

// TargetIndependent is implemented by holding sources whose Fetch result
// does not depend on the target currency, so one fetch can serve passes
// with different targets.
type TargetIndependent interface {
	TargetIndependent() bool
}

// RateProvider returns a positive base->quote rate or an error
type RateProvider interface {
	Name() string
	Rate(ctx context.Context, base, quote string) (float64, error)
}

// CurrencyConverter converts amounts between currencies
type CurrencyConverter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}
