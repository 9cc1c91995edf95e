package services

import (
	"context"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
)

// ConversionFailure records a holding that could not be valued
type ConversionFailure struct {
	Holding domain.ResolvedHolding
	Err     error
}

// PriceConversionService values resolved holdings in the target currency
type PriceConversionService struct {
	converter domain.CurrencyConverter
	log       zerolog.Logger
}

// NewPriceConversionService creates a new price conversion service
func NewPriceConversionService(converter domain.CurrencyConverter, log zerolog.Logger) *PriceConversionService {
	return &PriceConversionService{
		converter: converter,
		log:       log.With().Str("service", "price_conversion").Logger(),
	}
}

// ConvertHoldings converts each holding's native value into target. A
// holding that arrived with an error or whose conversion fails is reported
// in failures and left out of values; the others are unaffected.
// Only a cancelled context aborts the loop.
func (s *PriceConversionService) ConvertHoldings(
	ctx context.Context,
	holdings []domain.ResolvedHolding,
	target string,
) ([]domain.HoldingValue, []ConversionFailure, error) {
	values := make([]domain.HoldingValue, 0, len(holdings))
	var failures []ConversionFailure

	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if h.Err != nil {
			failures = append(failures, ConversionFailure{Holding: h, Err: h.Err})
			continue
		}

		native := h.NativeValue()
		converted, err := s.converter.Convert(ctx, native, h.NativeCurrency, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			s.log.Warn().
				Err(err).
				Str("symbol", h.Symbol).
				Str("currency", h.NativeCurrency).
				Float64("native_value", native).
				Msg("Failed to convert holding, valuing at zero")
			failures = append(failures, ConversionFailure{Holding: h, Err: err})
			continue
		}

		values = append(values, domain.HoldingValue{
			Symbol:         h.Symbol,
			Source:         h.Source,
			Value:          converted,
			NativeCurrency: h.NativeCurrency,
			NativeValue:    native,
		})

		s.log.Debug().
			Str("symbol", h.Symbol).
			Str("currency", h.NativeCurrency).
			Float64("native_value", native).
			Float64("value", converted).
			Msg("Converted holding")
	}

	s.log.Info().
		Int("total", len(holdings)).
		Int("converted", len(values)).
		Int("failed", len(failures)).
		Msg("Converted holdings")

	return values, failures, nil
}
