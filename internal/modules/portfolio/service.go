package portfolio

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/metrics"
	"github.com/aristath/portfoliowidget/internal/services"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultDustThreshold hides holdings worth one unit of the target currency or less
const DefaultDustThreshold = 1.0

// ValuationService orchestrates valuation passes.
//
// Each Run creates a fresh Pass with its own FX cache. Sources are fetched
// concurrently through coalescers, holdings are resolved and converted
// sequentially, and failures are isolated to the smallest unit:
//   - a ticker lookup marks one holding unpriced
//   - a failed conversion values one holding at zero
//   - a failed source contributes nothing
//
// All of them flag the summary incomplete. Only an authentication failure
// without AuthFallback fails the whole pass.
type ValuationService struct {
	sources      []domain.HoldingSource
	resolver     *currency.Resolver
	rates        *services.ExchangeRateFactory
	metrics      *metrics.Metrics
	authFallback bool
	log          zerolog.Logger
	now          func() time.Time
}

// NewValuationService creates a valuation service. Sources are wrapped with
// Coalesce so overlapping passes share in-flight fetches.
func NewValuationService(
	sources []domain.HoldingSource,
	resolver *currency.Resolver,
	rates *services.ExchangeRateFactory,
	m *metrics.Metrics,
	authFallback bool,
	log zerolog.Logger,
) *ValuationService {
	coalesced := make([]domain.HoldingSource, 0, len(sources))
	for _, src := range sources {
		coalesced = append(coalesced, Coalesce(src, m))
	}

	return &ValuationService{
		sources:      coalesced,
		resolver:     resolver,
		rates:        rates,
		metrics:      m,
		authFallback: authFallback,
		log:          log.With().Str("service", "valuation").Logger(),
		now:          time.Now,
	}
}

// Sources returns the configured source names in order
func (s *ValuationService) Sources() []string {
	names := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		names = append(names, src.Name())
	}
	return names
}

// Source returns the coalesced source with the given name
func (s *ValuationService) Source(name string) (domain.HoldingSource, bool) {
	for _, src := range s.sources {
		if src.Name() == name {
			return src, true
		}
	}
	return nil, false
}

// Run executes one pass and returns its summary. Holdings valued at or
// below dustThreshold are dropped before summation.
func (s *ValuationService) Run(ctx context.Context, target string, dustThreshold float64) (*domain.PortfolioSummary, error) {
	target = strings.ToUpper(strings.TrimSpace(target))
	if target == "" {
		target = domain.DefaultCurrency
	}

	pass := NewPass(s.log)
	start := time.Now()

	summary, err := s.run(ctx, pass, target, dustThreshold)

	state := string(pass.State())
	if err != nil && ctx.Err() != nil {
		state = "cancelled"
	}
	s.metrics.ObservePass(state, summary != nil && summary.Incomplete, time.Since(start))

	log := pass.Logger()
	if err != nil {
		log.Error().Err(err).Str("state", state).Dur("duration", time.Since(start)).Msg("Valuation pass failed")
		return nil, err
	}

	s.metrics.SetTotal(target, summary.TotalValue)
	log.Info().
		Float64("total", summary.TotalValue).
		Str("currency", target).
		Int("holdings", len(summary.Holdings)).
		Bool("incomplete", summary.Incomplete).
		Dur("duration", time.Since(start)).
		Msg("Valuation pass completed")

	return summary, nil
}

type fetchResult struct {
	source   string
	holdings []domain.RawHolding
	err      error
}

func (s *ValuationService) run(ctx context.Context, pass *Pass, target string, dust float64) (*domain.PortfolioSummary, error) {
	log := pass.Logger()

	if err := pass.Advance(domain.PassFetching); err != nil {
		return nil, err
	}
	results := s.fetchAll(ctx, target)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sourceTotals := make([]domain.SourceTotal, len(results))
	incomplete := false

	for i, res := range results {
		sourceTotals[i] = domain.SourceTotal{Name: res.source}
		if res.err == nil {
			continue
		}

		if domain.IsAuth(res.err) && !s.authFallback {
			if failErr := pass.Fail(res.err); failErr != nil {
				return nil, failErr
			}
			return nil, res.err
		}

		log.Warn().
			Err(res.err).
			Str("source", res.source).
			Msg("Source fetch failed, continuing without it")
		sourceTotals[i].Incomplete = true
		sourceTotals[i].Error = res.err.Error()
		incomplete = true
	}

	if err := pass.Advance(domain.PassResolving); err != nil {
		return nil, err
	}
	converter := services.NewPriceConversionService(s.rates.NewPass(pass.ID), log)

	perSource := make([][]domain.HoldingValue, len(results))
	for i, res := range results {
		if res.err != nil || len(res.holdings) == 0 {
			continue
		}

		resolved := make([]domain.ResolvedHolding, 0, len(res.holdings))
		for _, h := range res.holdings {
			resolved = append(resolved, s.resolver.ResolveHolding(h, target))
		}

		values, failures, err := converter.ConvertHoldings(ctx, resolved, target)
		if err != nil {
			return nil, err
		}
		if len(failures) > 0 {
			sourceTotals[i].Incomplete = true
			incomplete = true
		}
		perSource[i] = values
	}

	if err := pass.Advance(domain.PassAggregating); err != nil {
		return nil, err
	}

	holdings := make([]domain.HoldingValue, 0)
	total := decimal.Zero
	for i, values := range perSource {
		sourceSum := decimal.Zero
		for _, v := range values {
			if v.Value <= dust {
				log.Debug().
					Str("symbol", v.Symbol).
					Float64("value", v.Value).
					Float64("threshold", dust).
					Msg("Skipping dust holding")
				continue
			}
			holdings = append(holdings, v)
			sourceSum = sourceSum.Add(decimal.NewFromFloat(v.Value))
			sourceTotals[i].Holdings++
		}
		sourceTotals[i].Total = sourceSum.InexactFloat64()
		total = total.Add(sourceSum)
	}

	sortHoldings(holdings)

	if err := pass.Advance(domain.PassDone); err != nil {
		return nil, err
	}

	return &domain.PortfolioSummary{
		PassID:      pass.ID,
		TotalValue:  total.InexactFloat64(),
		Currency:    target,
		Holdings:    holdings,
		Sources:     sourceTotals,
		Incomplete:  incomplete,
		GeneratedAt: s.now(),
	}, nil
}

// fetchAll fetches every source concurrently; results keep source order
func (s *ValuationService) fetchAll(ctx context.Context, target string) []fetchResult {
	results := make([]fetchResult, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src domain.HoldingSource) {
			defer wg.Done()
			holdings, err := src.Fetch(ctx, target)
			if err == nil && holdings == nil {
				holdings = []domain.RawHolding{}
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.log.Debug().Str("source", src.Name()).Msg("Fetch abandoned")
			}
			results[i] = fetchResult{source: src.Name(), holdings: holdings, err: err}
		}(i, src)
	}
	wg.Wait()

	return results
}

// sortHoldings orders by value descending, then symbol
func sortHoldings(holdings []domain.HoldingValue) {
	sort.SliceStable(holdings, func(i, j int) bool {
		if holdings[i].Value != holdings[j].Value {
			return holdings[i].Value > holdings[j].Value
		}
		return holdings[i].Symbol < holdings[j].Symbol
	})
}
