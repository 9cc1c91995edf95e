package di

import (
	"fmt"

	"github.com/aristath/portfoliowidget/internal/clients/bitvavo"
	"github.com/aristath/portfoliowidget/internal/clients/exchangerate"
	"github.com/aristath/portfoliowidget/internal/clients/httpclient"
	"github.com/aristath/portfoliowidget/internal/clients/trading212"
	"github.com/aristath/portfoliowidget/internal/config"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
)

// InitializeSources builds a holding source for every credentialed account
func InitializeSources(cfg *config.Config, log zerolog.Logger) []domain.HoldingSource {
	client := httpclient.New(cfg.HTTPTimeout)
	sources := make([]domain.HoldingSource, 0, 2)

	if cfg.Bitvavo.Enabled() {
		sources = append(sources, bitvavo.NewClient(
			cfg.Bitvavo.APIKey,
			cfg.Bitvavo.APISecret,
			log,
			bitvavo.WithBaseURL(cfg.Bitvavo.BaseURL),
			bitvavo.WithAccessWindow(cfg.Bitvavo.AccessWindow),
			bitvavo.WithHTTPClient(client),
		))
	} else {
		log.Info().Str("source", bitvavo.SourceName).Msg("No credentials configured, source disabled")
	}

	if cfg.Trading212.Enabled() {
		sources = append(sources, trading212.NewClient(
			cfg.Trading212.APIKey,
			log,
			trading212.WithBaseURL(cfg.Trading212.BaseURL),
			trading212.WithFallbackCurrency(cfg.Trading212.FallbackCurrency),
			trading212.WithHTTPClient(client),
		))
	} else {
		log.Info().Str("source", trading212.SourceName).Msg("No credentials configured, source disabled")
	}

	return sources
}

// InitializeRateProviders builds the ordered FX provider chain
func InitializeRateProviders(cfg *config.Config, log zerolog.Logger) ([]domain.RateProvider, error) {
	providers, err := exchangerate.NewProviders(cfg.FXProviders, cfg.FXTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build FX providers: %w", err)
	}
	return providers, nil
}
