package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/metrics"
	currencyhandlers "github.com/aristath/portfoliowidget/internal/modules/currency/handlers"
	"github.com/aristath/portfoliowidget/internal/modules/display"
	portfoliohandlers "github.com/aristath/portfoliowidget/internal/modules/portfolio/handlers"
	"github.com/aristath/portfoliowidget/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	summary *domain.PortfolioSummary
	err     error
}

func (r *stubRunner) Run(_ context.Context, target string, _ float64) (*domain.PortfolioSummary, error) {
	if r.err != nil {
		return nil, r.err
	}
	s := *r.summary
	s.Currency = target
	return &s, nil
}

type stubSources []string

func (s stubSources) Sources() []string { return s }

func newTestServer(runner portfoliohandlers.Runner) (*Server, *metrics.Metrics, *display.StateManager) {
	log := zerolog.Nop()
	m := metrics.New()
	state := display.NewStateManager("EUR", false, log)
	system := NewSystemHandlers(log, stubSources{"bitvavo", "trading212"}, state)
	system.stats = func() (float64, float64) { return 12.5, 40 }

	srv := New(Config{
		Log:       log,
		Port:      0,
		DevMode:   true,
		Portfolio: portfoliohandlers.NewHandler(runner, state, "EUR", 1.0, log),
		Currency:  currencyhandlers.NewHandler(services.NewExchangeRateFactory(nil, m, log), log),
		System:    system,
		Metrics:   m,
	})
	return srv, m, state
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(&stubRunner{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"portfoliowidget"}`, rec.Body.String())
}

func TestPortfolioRoutesMounted(t *testing.T) {
	runner := &stubRunner{summary: &domain.PortfolioSummary{PassID: "p1", TotalValue: 99, GeneratedAt: time.Now()}}
	srv, _, state := newTestServer(runner)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/portfolio/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p1", state.Summary().PassID)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/display", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "€99.00")
}

func TestSystemStatus(t *testing.T) {
	runner := &stubRunner{err: &domain.AuthError{Source: "bitvavo", StatusCode: 403, Err: errors.New("invalid signature")}}
	srv, _, state := newTestServer(runner)
	state.Update(nil, runner.err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, 12.5, resp.CPUPercent)
	assert.Equal(t, 40.0, resp.MemoryPercent)
	assert.Equal(t, []string{"bitvavo", "trading212"}, resp.Sources)
	assert.Equal(t, display.NotAvailable, resp.LastUpdated)
	assert.Contains(t, resp.LastError, "authentication failed")
	assert.Positive(t, resp.Goroutines)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, m, _ := newTestServer(&stubRunner{})
	m.ObservePass("done", false, time.Second)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portfolio_passes_total{incomplete="false",state="done"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(&stubRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/api/portfolio/summary", nil)
	req.Header.Set("Origin", "http://widget.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCurrencyRoutesMounted(t *testing.T) {
	srv, _, _ := newTestServer(&stubRunner{})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/currency/validate/usd", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"USD"`)
}
