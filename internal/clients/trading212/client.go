// Package trading212 provides the brokerage-position holding source.
package trading212

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aristath/portfoliowidget/internal/clients/httpclient"
	"github.com/aristath/portfoliowidget/internal/currency"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/fields"
	"github.com/rs/zerolog"
)

const (
	// SourceName identifies this source in summaries and logs
	SourceName = "trading212"

	DefaultBaseURL = "https://live.trading212.com/api/v0/equity"
)

var (
	accountCurrencyKeys = []string{"currencyCode", "currency", "accountCurrency", "baseCurrency"}
	symbolKeys          = []string{"ticker", "symbol", "instrumentCode"}
	valueKeys           = []string{"value", "currentValue", "marketValue"}
	quantityKeys        = []string{"quantity", "qty"}
	priceKeys           = []string{"currentPrice", "price", "lastPrice"}
	priceObjectKeys     = []string{"value", "amount", "price"}
)

// Client is the Trading212 REST client
type Client struct {
	apiKey           string
	baseURL          string
	fallbackCurrency string
	requester        *httpclient.Requester
	log              zerolog.Logger
}

// Option configures the client
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for all calls
func WithHTTPClient(client httpclient.HTTPClient) Option {
	return func(c *Client) {
		c.requester.Client = client
	}
}

// WithFallbackCurrency sets the account currency used when /account/info
// does not report a usable one
func WithFallbackCurrency(code string) Option {
	return func(c *Client) {
		if normalized, ok := currency.Normalize(code); ok {
			c.fallbackCurrency = normalized
		}
	}
}

// NewClient creates a new Trading212 client
func NewClient(apiKey string, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", SourceName).Logger()
	c := &Client{
		apiKey:           apiKey,
		baseURL:          DefaultBaseURL,
		fallbackCurrency: domain.DefaultCurrency,
		requester: &httpclient.Requester{
			Source: SourceName,
			Client: httpclient.New(httpclient.DefaultTimeout),
			Log:    l,
		},
		log: l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements domain.HoldingSource
func (c *Client) Name() string {
	return SourceName
}

// TargetIndependent reports that positions are valued in the account
// currency whatever target the pass asks for
func (c *Client) TargetIndependent() bool {
	return true
}

// Fetch returns one holding per open position. The account info call runs
// first and doubles as the credential check.
func (c *Client) Fetch(ctx context.Context, _ string) ([]domain.RawHolding, error) {
	accountCurrency, err := c.AccountCurrency(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := c.Positions(ctx)
	if err != nil {
		return nil, err
	}

	holdings := make([]domain.RawHolding, 0, len(positions))
	for _, pos := range positions {
		holding, ok := toHolding(pos, accountCurrency)
		if !ok {
			c.log.Debug().Interface("position", pos).Msg("Position without positive value skipped")
			continue
		}
		holdings = append(holdings, holding)
	}

	c.log.Debug().
		Int("positions", len(positions)).
		Int("holdings", len(holdings)).
		Str("account_currency", accountCurrency).
		Msg("Fetched portfolio")
	return holdings, nil
}

// AccountCurrency returns the account's reporting currency, or the fallback
// currency when the response carries none. Rejected credentials return an
// *AuthError.
func (c *Client) AccountCurrency(ctx context.Context) (string, error) {
	result, err := c.get(ctx, "/account/info")
	if err != nil {
		return "", err
	}

	if code, ok := fields.CurrencyCode(result, accountCurrencyKeys...); ok {
		if normalized, ok := currency.Normalize(code); ok {
			return normalized, nil
		}
	}

	c.log.Warn().Str("fallback", c.fallbackCurrency).Msg("Account currency missing, using fallback")
	return c.fallbackCurrency, nil
}

// Positions returns the raw position records from GET /portfolio
func (c *Client) Positions(ctx context.Context) ([]map[string]interface{}, error) {
	result, err := c.get(ctx, "/portfolio")
	if err != nil {
		return nil, err
	}

	switch result.(type) {
	case []interface{}, map[string]interface{}:
		return fields.Records(result, "items", "positions", "result"), nil
	default:
		return nil, &domain.ParseError{What: "trading212 portfolio", Err: fmt.Errorf("unexpected %T", result)}
	}
}

func (c *Client) get(ctx context.Context, endpoint string) (interface{}, error) {
	if c.apiKey == "" {
		return nil, &domain.AuthError{Source: SourceName, Err: errors.New("api key not configured")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	return c.requester.DoJSON(req)
}

// toHolding values a position from the best field available:
// valueInAccountCurrency, then value/currentValue/marketValue, then
// quantity x currentPrice. Value keys are only read from the position itself;
// a nested price object carries a per-unit price, not the position value.
func toHolding(pos map[string]interface{}, accountCurrency string) (domain.RawHolding, bool) {
	symbol, _ := fields.FlatString(pos, symbolKeys...)

	if v, ok := fields.FlatNumber(pos, "valueInAccountCurrency"); ok {
		return domain.RawHolding{
			Source:       SourceName,
			Symbol:       symbol,
			Amount:       v,
			CurrencyHint: map[string]interface{}{"currency": accountCurrency, "ticker": symbol},
		}, v > 0
	}

	if v, ok := fields.FlatNumber(pos, valueKeys...); ok {
		return domain.RawHolding{
			Source:       SourceName,
			Symbol:       symbol,
			Amount:       v,
			CurrencyHint: pos,
		}, v > 0
	}

	quantity, qok := fields.FlatNumber(pos, quantityKeys...)
	price, pok := unitPrice(pos)
	if !qok || !pok || quantity <= 0 || price <= 0 {
		return domain.RawHolding{}, false
	}
	return domain.RawHolding{
		Source:       SourceName,
		Symbol:       symbol,
		Amount:       quantity,
		PriceHint:    &price,
		CurrencyHint: pos,
	}, true
}

// unitPrice reads the per-unit price, either flat ("currentPrice": 10) or
// wrapped in a price object ("currentPrice": {"value": 10, "currency": "USD"})
func unitPrice(pos map[string]interface{}) (float64, bool) {
	if price, ok := fields.FlatNumber(pos, priceKeys...); ok {
		return price, true
	}
	if obj, ok := fields.Object(pos, priceKeys...); ok {
		return fields.FlatNumber(obj, priceObjectKeys...)
	}
	return 0, false
}
