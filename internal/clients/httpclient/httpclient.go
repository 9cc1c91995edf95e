// Package httpclient holds the JSON-over-HTTP plumbing shared by the
// holding sources and the FX providers.
package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds every upstream call made during a pass
	DefaultTimeout = 30 * time.Second
	userAgent      = "portfoliowidget/1.0"
	maxBodyBytes   = 8 << 20
	logBodyChars   = 500
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=httpclient -destination=mock_http_client_test.go -source=httpclient.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns an http.Client with the given timeout and a tuned transport
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Requester executes requests for one named upstream and maps failures onto
// the domain error taxonomy: 401/403 become *AuthError, transport failures and
// other non-2xx statuses *NetworkError, and undecodable bodies *ParseError.
type Requester struct {
	Source string
	Client HTTPClient
	Log    zerolog.Logger
}

// DoJSON sends req and decodes the JSON response body
func (r *Requester) DoJSON(req *http.Request) (interface{}, error) {
	op := fmt.Sprintf("%s %s %s", r.Source, req.Method, req.URL.Path)

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.NetworkError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyStr := Truncate(string(body))
		r.Log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("url", req.URL.Redacted()).
			Msg("API returned non-2xx status")

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &domain.AuthError{Source: r.Source, StatusCode: resp.StatusCode, Err: errors.New(bodyStr)}
		}
		return nil, &domain.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	var result interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		r.Log.Error().
			Err(err).
			Str("response_body", Truncate(string(body))).
			Str("url", req.URL.Redacted()).
			Msg("Failed to parse JSON response")
		return nil, &domain.ParseError{What: op, Err: err}
	}

	return result, nil
}

// Truncate shortens s for log output
func Truncate(s string) string {
	if len(s) > logBodyChars {
		return s[:logBodyChars] + "..."
	}
	return s
}
