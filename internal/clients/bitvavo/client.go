// Package bitvavo provides the exchange-balance holding source.
package bitvavo

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/portfoliowidget/internal/clients/httpclient"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/fields"
	"github.com/rs/zerolog"
)

const (
	// SourceName identifies this source in summaries and logs
	SourceName = "bitvavo"

	DefaultBaseURL      = "https://api.bitvavo.com/v2"
	DefaultAccessWindow = 60000

	headerAccessKey       = "Bitvavo-Access-Key"
	headerAccessTimestamp = "Bitvavo-Access-Timestamp"
	headerAccessSignature = "Bitvavo-Access-Signature"
	headerAccessWindow    = "Bitvavo-Access-Window"
)

// Balance is one asset balance on the account
type Balance struct {
	Symbol    string
	Available float64
	InOrder   float64
}

// Amount is the full position including funds locked in open orders
func (b Balance) Amount() float64 {
	return b.Available + b.InOrder
}

// Client is the Bitvavo REST client
type Client struct {
	apiKey       string
	apiSecret    string
	baseURL      string
	accessWindow int
	requester    *httpclient.Requester
	log          zerolog.Logger
	now          func() time.Time
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

// WithAccessWindow sets the signature validity window in milliseconds
func WithAccessWindow(ms int) Option {
	return func(c *Client) {
		if ms > 0 {
			c.accessWindow = ms
		}
	}
}

// NewClient creates a new Bitvavo client
func NewClient(apiKey, apiSecret string, log zerolog.Logger, opts ...Option) *Client {
	l := log.With().Str("client", SourceName).Logger()
	c := &Client{
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		baseURL:      DefaultBaseURL,
		accessWindow: DefaultAccessWindow,
		requester: &httpclient.Requester{
			Source: SourceName,
			Client: httpclient.New(httpclient.DefaultTimeout),
			Log:    l,
		},
		log: l,
		now: time.Now,
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

// Fetch returns the account's non-zero balances valued in the target
// currency's market. A failed ticker lookup marks that one holding with Err
// instead of failing the fetch.
func (c *Client) Fetch(ctx context.Context, targetCurrency string) ([]domain.RawHolding, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return nil, err
	}

	target := strings.ToUpper(targetCurrency)
	holdings := make([]domain.RawHolding, 0, len(balances))
	for _, b := range balances {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		amount := b.Amount()
		if amount <= 0 {
			continue
		}

		holding := domain.RawHolding{
			Source:       SourceName,
			Symbol:       b.Symbol,
			Amount:       amount,
			CurrencyHint: map[string]interface{}{"currency": target, "symbol": b.Symbol},
		}

		if !strings.EqualFold(b.Symbol, target) {
			market := b.Symbol + "-" + target
			price, err := c.TickerPrice(ctx, market)
			if err != nil {
				c.log.Warn().Err(err).Str("market", market).Msg("Ticker price lookup failed, holding left unpriced")
				holding.Err = err
			} else {
				holding.PriceHint = &price
			}
		}

		holdings = append(holdings, holding)
	}

	c.log.Debug().Int("balances", len(balances)).Int("holdings", len(holdings)).Msg("Fetched balances")
	return holdings, nil
}

// Balances returns all balances reported by GET /balance
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, &domain.AuthError{Source: SourceName, Err: errors.New("api key or secret not configured")}
	}

	req, err := c.newSignedRequest(ctx, http.MethodGet, "/balance", "")
	if err != nil {
		return nil, err
	}

	result, err := c.requester.DoJSON(req)
	if err != nil {
		return nil, err
	}

	// Bitvavo reports auth problems as {"errorCode":..., "error":...} on some paths
	if obj, ok := result.(map[string]interface{}); ok {
		if msg, ok := fields.FlatString(obj, "error"); ok {
			code, _ := fields.Number(obj, "errorCode")
			return nil, &domain.AuthError{Source: SourceName, Err: fmt.Errorf("error %d: %s", int(code), msg)}
		}
	}

	records, ok := result.([]interface{})
	if !ok {
		return nil, &domain.ParseError{What: "bitvavo balance", Err: fmt.Errorf("expected array, got %T", result)}
	}

	balances := make([]Balance, 0, len(records))
	for _, rec := range fields.Records(records) {
		symbol, ok := fields.FlatString(rec, "symbol")
		if !ok {
			c.log.Warn().Interface("record", rec).Msg("Balance without symbol skipped")
			continue
		}
		available, _ := fields.Number(rec, "available")
		inOrder, _ := fields.Number(rec, "inOrder")
		balances = append(balances, Balance{
			Symbol:    strings.ToUpper(symbol),
			Available: available,
			InOrder:   inOrder,
		})
	}
	return balances, nil
}

// TickerPrice fetches the public last price for a market such as BTC-EUR
func (c *Client) TickerPrice(ctx context.Context, market string) (float64, error) {
	endpoint := fmt.Sprintf("%s/ticker/price?market=%s", c.baseURL, url.QueryEscape(market))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	result, err := c.requester.DoJSON(req)
	if err != nil {
		return 0, err
	}

	price, ok := fields.Number(result, "price")
	if !ok {
		return 0, &domain.ParseError{What: "ticker price " + market, Err: domain.ErrNotFound}
	}
	if price <= 0 {
		return 0, &domain.ParseError{What: "ticker price " + market, Err: fmt.Errorf("non-positive price %v", price)}
	}
	return price, nil
}

func (c *Client) newSignedRequest(ctx context.Context, method, endpoint, body string) (*http.Request, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	signature := sign(c.apiSecret, timestamp, method, signedPath(req.URL), body)

	req.Header.Set(headerAccessKey, c.apiKey)
	req.Header.Set(headerAccessTimestamp, timestamp)
	req.Header.Set(headerAccessSignature, signature)
	req.Header.Set(headerAccessWindow, strconv.Itoa(c.accessWindow))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// signedPath is the request path as the server sees it, including the
// version prefix and any query string
func signedPath(u *url.URL) string {
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

// sign returns hex(HMAC-SHA256(secret, timestamp + METHOD + path + body))
func sign(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + strings.ToUpper(method) + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}
