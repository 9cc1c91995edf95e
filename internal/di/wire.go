package di

import (
	"github.com/aristath/portfoliowidget/internal/config"
	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/aristath/portfoliowidget/internal/metrics"
	currencyhandlers "github.com/aristath/portfoliowidget/internal/modules/currency/handlers"
	"github.com/aristath/portfoliowidget/internal/modules/display"
	"github.com/aristath/portfoliowidget/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/portfoliowidget/internal/modules/portfolio/handlers"
	"github.com/aristath/portfoliowidget/internal/services"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize clients (holding sources, FX providers)
// 2. Initialize services (resolver, rate factory, valuation)
// 3. Initialize presentation state and handlers
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{
		Metrics: metrics.New(),
	}

	// Step 1: Clients
	container.Sources = InitializeSources(cfg, log)
	providers, err := InitializeRateProviders(cfg, log)
	if err != nil {
		return nil, err
	}
	container.RateProviders = providers

	if len(container.Sources) == 0 {
		log.Warn().Msg("No holding sources configured, every pass will report zero")
	}

	// Step 2: Services
	container.CurrencyResolver = currency.NewResolver(log)
	container.ExchangeRates = services.NewExchangeRateFactory(providers, container.Metrics, log)
	container.Valuation = portfolio.NewValuationService(
		container.Sources,
		container.CurrencyResolver,
		container.ExchangeRates,
		container.Metrics,
		cfg.AuthFallback,
		log,
	)

	// Step 3: Presentation
	container.DisplayState = display.NewStateManager(cfg.TargetCurrency, cfg.HideValues, log)
	container.PortfolioHandler = portfoliohandlers.NewHandler(
		container.Valuation,
		container.DisplayState,
		cfg.TargetCurrency,
		cfg.DustThreshold,
		log,
	)
	container.CurrencyHandler = currencyhandlers.NewHandler(container.ExchangeRates, log)

	log.Info().
		Strs("sources", container.Valuation.Sources()).
		Int("fx_providers", len(providers)).
		Str("currency", cfg.TargetCurrency).
		Msg("Dependency injection wiring completed")

	return container, nil
}
