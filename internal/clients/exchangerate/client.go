// Package exchangerate provides the public FX rate providers.
//
// Every provider answers in its own JSON shape. Each Endpoint lists the
// candidate keys for its shape and the lenient extractor does the rest, so
// a Provider yields either a positive rate or an error.
package exchangerate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/portfoliowidget/internal/clients/httpclient"
	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/fields"
	"github.com/rs/zerolog"
)

// DefaultTimeout for a single provider call
const DefaultTimeout = 10 * time.Second

// Provider queries one Endpoint
type Provider struct {
	endpoint  Endpoint
	requester *httpclient.Requester
	log       zerolog.Logger
}

// Option configures a provider
type Option func(*Provider)

// WithBaseURL overrides the endpoint's base URL
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.endpoint.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client httpclient.HTTPClient) Option {
	return func(p *Provider) {
		p.requester.Client = client
	}
}

// NewProvider creates a provider for a known endpoint id
func NewProvider(id string, log zerolog.Logger, opts ...Option) (*Provider, error) {
	endpoint, ok := Endpoints[id]
	if !ok {
		return nil, fmt.Errorf("unknown exchange rate provider %q", id)
	}
	return NewEndpointProvider(endpoint, log, opts...), nil
}

// NewEndpointProvider creates a provider for an arbitrary endpoint
func NewEndpointProvider(endpoint Endpoint, log zerolog.Logger, opts ...Option) *Provider {
	l := log.With().Str("client", endpoint.ID).Logger()
	p := &Provider{
		endpoint: endpoint,
		requester: &httpclient.Requester{
			Source: endpoint.ID,
			Client: httpclient.New(DefaultTimeout),
			Log:    l,
		},
		log: l,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewProviders builds the ordered chain for the given ids
func NewProviders(ids []string, timeout time.Duration, log zerolog.Logger) ([]domain.RateProvider, error) {
	client := httpclient.New(timeout)
	providers := make([]domain.RateProvider, 0, len(ids))
	for _, id := range ids {
		p, err := NewProvider(strings.TrimSpace(id), log, WithHTTPClient(client))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// Name implements domain.RateProvider
func (p *Provider) Name() string {
	return p.endpoint.ID
}

// Rate returns how many units of quote one unit of base buys
func (p *Provider) Rate(ctx context.Context, base, quote string) (float64, error) {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)

	endpoint := p.endpoint.BaseURL + p.endpoint.Path(base, quote)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	p.log.Debug().Str("url", endpoint).Msg("Fetching rate")
	result, err := p.requester.DoJSON(req)
	if err != nil {
		return 0, err
	}

	// Some providers report failures in a 200 body
	if obj, ok := result.(map[string]interface{}); ok {
		if success, ok := obj["success"].(bool); ok && !success {
			return 0, &domain.ParseError{What: p.endpoint.ID + " response", Err: fmt.Errorf("success=false")}
		}
	}

	rate, ok := fields.Number(result, p.endpoint.Keys(base, quote)...)
	if !ok {
		return 0, &domain.ParseError{What: fmt.Sprintf("%s rate %s/%s", p.endpoint.ID, base, quote), Err: domain.ErrNotFound}
	}
	if rate <= 0 {
		return 0, &domain.ParseError{What: fmt.Sprintf("%s rate %s/%s", p.endpoint.ID, base, quote), Err: fmt.Errorf("non-positive rate %v", rate)}
	}
	return rate, nil
}
