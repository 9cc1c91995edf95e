package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/aristath/portfoliowidget/internal/modules/display"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRunner is a mock valuation runner for testing
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, target string, dustThreshold float64) (*domain.PortfolioSummary, error) {
	args := m.Called(target, dustThreshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PortfolioSummary), args.Error(1)
}

func sampleSummary(id string, total float64) *domain.PortfolioSummary {
	return &domain.PortfolioSummary{
		PassID:     id,
		TotalValue: total,
		Currency:   "EUR",
		Holdings: []domain.HoldingValue{
			{Symbol: "BTC", Source: "bitvavo", Value: total, NativeCurrency: "EUR", NativeValue: total},
		},
		Sources:     []domain.SourceTotal{{Name: "bitvavo", Total: total, Holdings: 1}},
		GeneratedAt: time.Now(),
	}
}

func setupRouter(runner Runner, hide bool) (*chi.Mux, *Handler) {
	state := display.NewStateManager("EUR", hide, zerolog.Nop())
	handler := NewHandler(runner, state, "EUR", 1.0, zerolog.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router, handler
}

func TestRegisterRoutes(t *testing.T) {
	router, _ := setupRouter(&MockRunner{}, false)

	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/portfolio/summary"},
		{"POST", "/portfolio/refresh"},
		{"GET", "/portfolio/display"},
		{"PUT", "/portfolio/visibility"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			found := false
			_ = chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
				if method == tc.method && route == tc.path {
					found = true
				}
				return nil
			})
			assert.True(t, found, "route should be registered")
		})
	}
}

func TestHandleGetSummary_RunsPassOnce(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(sampleSummary("p1", 250), nil).Once()

	router, _ := setupRouter(runner, false)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/portfolio/summary", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body domain.PortfolioSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "p1", body.PassID)
		assert.Equal(t, 250.0, body.TotalValue)
	}

	runner.AssertNumberOfCalls(t, "Run", 1)
}

func TestHandleGetSummary_AdHocPass(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "USD", 0.0).Return(sampleSummary("adhoc", 10), nil).Once()

	router, handler := setupRouter(runner, false)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/summary?target=usd&dust=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pass_id":"adhoc"`)
	assert.Nil(t, handler.state.Summary(), "ad hoc passes are not stored")
}

func TestHandleGetSummary_InvalidDust(t *testing.T) {
	router, _ := setupRouter(&MockRunner{}, false)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/summary?dust=-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRefresh(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(sampleSummary("p1", 100), nil).Once()
	runner.On("Run", "EUR", 1.0).Return(sampleSummary("p2", 120), nil).Once()

	router, handler := setupRouter(runner, false)

	for _, id := range []string{"p1", "p2"} {
		req := httptest.NewRequest(http.MethodPost, "/portfolio/refresh", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), id)
	}

	assert.Equal(t, "p2", handler.state.Summary().PassID)
}

func TestRefresh_OutOfOrderCompletionKeepsNewest(t *testing.T) {
	older := sampleSummary("scheduled", 100)
	newer := sampleSummary("manual", 120)
	older.GeneratedAt = newer.GeneratedAt.Add(-time.Second)

	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(newer, nil).Once()
	runner.On("Run", "EUR", 1.0).Return(older, nil).Once()

	_, handler := setupRouter(runner, false)

	_, err := handler.Refresh(context.Background())
	require.NoError(t, err)
	summary, err := handler.Refresh(context.Background())
	require.NoError(t, err)

	// the caller still gets its own pass
	assert.Equal(t, "scheduled", summary.PassID)
	assert.Equal(t, "manual", handler.state.Summary().PassID)
}

func TestHandleRefresh_AuthFailure(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(nil, &domain.AuthError{Source: "bitvavo", StatusCode: 403, Err: errors.New("invalid signature")})

	router, handler := setupRouter(runner, false)

	req := httptest.NewRequest(http.MethodPost, "/portfolio/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "authentication failed")
	assert.True(t, domain.IsAuth(handler.state.LastError()))
}

func TestHandleRefresh_InternalError(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(nil, errors.New("boom"))

	router, _ := setupRouter(runner, false)

	req := httptest.NewRequest(http.MethodPost, "/portfolio/refresh", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetDisplay(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(sampleSummary("p1", 1234.5), nil)

	router, handler := setupRouter(runner, false)
	_, err := handler.Refresh(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/portfolio/display", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view display.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "€1,234.50", view.Total)
	assert.Equal(t, "just now", view.Updated)
	require.Len(t, view.Sources, 1)
	assert.Equal(t, "bitvavo", view.Sources[0].Name)
}

func TestHandleSetVisibility(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Run", "EUR", 1.0).Return(sampleSummary("p1", 42), nil)

	router, handler := setupRouter(runner, false)
	_, err := handler.Refresh(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/portfolio/visibility", strings.NewReader(`{"hide_values": true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var view display.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Hidden)
	assert.Equal(t, display.Masked, view.Total)

	req = httptest.NewRequest(http.MethodPut, "/portfolio/visibility", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
