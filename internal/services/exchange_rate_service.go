package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/metrics"
	"github.com/rs/zerolog"
)

// ExchangeRateFactory hands out a fresh ExchangeRateService per pass so no
// rate outlives the pass that fetched it.
type ExchangeRateFactory struct {
	providers []domain.RateProvider
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewExchangeRateFactory creates a factory over an ordered provider chain
func NewExchangeRateFactory(providers []domain.RateProvider, m *metrics.Metrics, log zerolog.Logger) *ExchangeRateFactory {
	return &ExchangeRateFactory{providers: providers, metrics: m, log: log}
}

// NewPass returns a service with an empty cache
func (f *ExchangeRateFactory) NewPass(passID string) *ExchangeRateService {
	log := f.log
	if passID != "" {
		log = log.With().Str("pass_id", passID).Logger()
	}
	return NewExchangeRateService(f.providers, f.metrics, log)
}

// Providers returns the configured chain in order
func (f *ExchangeRateFactory) Providers() []domain.RateProvider {
	return f.providers
}

// ExchangeRateService converts amounts through an ordered provider chain
// with a pass-scoped cache
type ExchangeRateService struct {
	providers []domain.RateProvider
	cache     *rateCache
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewExchangeRateService creates a service with its own empty cache
func NewExchangeRateService(providers []domain.RateProvider, m *metrics.Metrics, log zerolog.Logger) *ExchangeRateService {
	return &ExchangeRateService{
		providers: providers,
		cache:     newRateCache(),
		metrics:   m,
		log:       log.With().Str("service", "exchange_rate").Logger(),
	}
}

// Convert returns amount expressed in the target currency. Identical
// currencies and a zero amount short-circuit without touching the network.
// Minor-unit pseudo-codes (GBX) are scaled to their major currency first.
func (s *ExchangeRateService) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to || amount == 0 {
		return amount, nil
	}

	fromMajor, fromFactor := currency.Major(from)
	toMajor, toFactor := currency.Major(to)
	majorAmount := amount * fromFactor

	if fromMajor == toMajor {
		return majorAmount / toFactor, nil
	}

	rate, err := s.Rate(ctx, fromMajor, toMajor)
	if err != nil {
		return 0, err
	}
	return majorAmount * rate.Rate / toFactor, nil
}

// Rate resolves base->quote, consulting the pass cache first
func (s *ExchangeRateService) Rate(ctx context.Context, base, quote string) (domain.ExchangeRate, error) {
	key := rateKey{base: base, quote: quote}

	entry, owner := s.cache.reserve(key)
	if !owner {
		s.metrics.ObserveCache(true)
		return s.cache.wait(ctx, entry)
	}

	s.metrics.ObserveCache(false)
	rate, err := s.fetch(ctx, base, quote)
	s.cache.complete(entry, rate, err)
	return rate, err
}

// Rates lists the rates resolved so far in this pass, sorted by pair
func (s *ExchangeRateService) Rates() []domain.ExchangeRate {
	rates := s.cache.resolved()
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Base != rates[j].Base {
			return rates[i].Base < rates[j].Base
		}
		return rates[i].Quote < rates[j].Quote
	})
	return rates
}

// fetch walks the provider chain; the first positive rate wins
func (s *ExchangeRateService) fetch(ctx context.Context, base, quote string) (domain.ExchangeRate, error) {
	attempts := make([]error, 0, len(s.providers))

	for _, provider := range s.providers {
		if err := ctx.Err(); err != nil {
			return domain.ExchangeRate{}, err
		}

		start := time.Now()
		rate, err := provider.Rate(ctx, base, quote)
		if err == nil && (rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0)) {
			err = &domain.ParseError{What: provider.Name() + " rate", Err: fmt.Errorf("unusable rate %v", rate)}
		}
		s.metrics.ObserveProvider(provider.Name(), err, time.Since(start))

		if err == nil {
			s.log.Debug().
				Str("from", base).
				Str("to", quote).
				Float64("rate", rate).
				Str("source", provider.Name()).
				Msg("Got rate")
			return domain.ExchangeRate{Base: base, Quote: quote, Rate: rate, Source: provider.Name()}, nil
		}

		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return domain.ExchangeRate{}, ctx.Err()
		}

		s.log.Warn().
			Err(err).
			Str("from", base).
			Str("to", quote).
			Str("source", provider.Name()).
			Msg("Rate provider failed, trying next")
		attempts = append(attempts, fmt.Errorf("%s: %w", provider.Name(), err))
	}

	s.log.Error().
		Str("from", base).
		Str("to", quote).
		Int("providers", len(s.providers)).
		Msg("All rate providers failed")
	return domain.ExchangeRate{}, &domain.FxUnavailableError{Base: base, Quote: quote, Attempts: attempts}
}
