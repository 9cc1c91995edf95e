// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/metrics"
	currencyhandlers "github.com/aristath/portfoliowidget/internal/modules/currency/handlers"
	"github.com/aristath/portfoliowidget/internal/modules/display"
	"github.com/aristath/portfoliowidget/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/portfoliowidget/internal/modules/portfolio/handlers"
	"github.com/aristath/portfoliowidget/internal/services"
)

// Container holds all dependencies for the application.
//
// It is created by Wire and is the single source of truth for service
// instances. Nothing in it is persisted: the display state lives in memory.
type Container struct {
	// Clients
	Sources       []domain.HoldingSource
	RateProviders []domain.RateProvider

	// Services
	Metrics          *metrics.Metrics
	CurrencyResolver *currency.Resolver
	ExchangeRates    *services.ExchangeRateFactory
	Valuation        *portfolio.ValuationService

	// Presentation
	DisplayState     *display.StateManager
	PortfolioHandler *portfoliohandlers.Handler
	CurrencyHandler  *currencyhandlers.Handler
}
