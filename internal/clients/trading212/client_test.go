package trading212

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, info, portfolio string, infoStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("Authorization") != "test_key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"AuthenticationFailed"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v0/equity/account/info":
			w.WriteHeader(infoStatus)
			w.Write([]byte(info))
		case "/api/v0/equity/portfolio":
			w.Write([]byte(portfolio))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, &paths
}

func newTestClient(url, key string) *Client {
	return NewClient(key, zerolog.New(nil).Level(zerolog.Disabled), WithBaseURL(url+"/api/v0/equity"))
}

func TestFetch_ValuePrecedence(t *testing.T) {
	portfolio := `[
		{"ticker": "AAPL_US_EQ", "quantity": 2, "currentPrice": 150, "valueInAccountCurrency": 280},
		{"ticker": "MSFT_US_EQ", "quantity": 1, "currentPrice": 400, "currentValue": 395},
		{"ticker": "SAP_DE_EQ", "quantity": 3, "currentPrice": "120.5"},
		{"ticker": "AMZN_US_EQ", "quantity": 3, "currentPrice": {"value": 10, "currency": "USD"}},
		{"ticker": "ZERO_US_EQ", "quantity": 0, "currentPrice": 10},
		{"ticker": "NOPRICE_US_EQ", "quantity": 5}
	]`
	server, paths := newServer(t, `{"id": 1, "currencyCode": "EUR"}`, portfolio, http.StatusOK)
	defer server.Close()

	holdings, err := newTestClient(server.URL, "test_key").Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	require.Len(t, holdings, 4)

	assert.Equal(t, []string{"/api/v0/equity/account/info", "/api/v0/equity/portfolio"}, *paths)

	// valueInAccountCurrency wins and is denominated in the account currency
	assert.Equal(t, "AAPL_US_EQ", holdings[0].Symbol)
	assert.InDelta(t, 280, holdings[0].NativeValue(), 1e-9)
	assert.Equal(t, "EUR", holdings[0].CurrencyHint["currency"])

	// value-style field beats quantity x price
	assert.InDelta(t, 395, holdings[1].NativeValue(), 1e-9)
	assert.Nil(t, holdings[1].PriceHint)

	// quantity x currentPrice as last resort
	require.NotNil(t, holdings[2].PriceHint)
	assert.InDelta(t, 361.5, holdings[2].NativeValue(), 1e-9)
	assert.Equal(t, "SAP_DE_EQ", holdings[2].CurrencyHint["ticker"])

	// a nested price object is a per-unit price, not the position value
	assert.Equal(t, "AMZN_US_EQ", holdings[3].Symbol)
	require.NotNil(t, holdings[3].PriceHint)
	assert.InDelta(t, 30, holdings[3].NativeValue(), 1e-9)
}

func TestAccountCurrency(t *testing.T) {
	tests := []struct {
		name string
		info string
		want string
	}{
		{"flat code", `{"currencyCode": "GBP"}`, "GBP"},
		{"alternative key", `{"currency": "usd"}`, "USD"},
		{"nested object", `{"account": {"currency": "CHF"}}`, "CHF"},
		{"missing uses fallback", `{"id": 7}`, "PLN"},
		{"invalid uses fallback", `{"currencyCode": "???"}`, "PLN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newServer(t, tt.info, `[]`, http.StatusOK)
			defer server.Close()

			client := NewClient("test_key", zerolog.Nop(),
				WithBaseURL(server.URL+"/api/v0/equity"),
				WithFallbackCurrency("PLN"))

			got, err := client.AccountCurrency(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch_BadKeyIsAuthError(t *testing.T) {
	server, paths := newServer(t, `{}`, `[]`, http.StatusOK)
	defer server.Close()

	_, err := newTestClient(server.URL, "wrong").Fetch(context.Background(), "EUR")

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Len(t, *paths, 1, "portfolio must not be requested after auth failure")
}

func TestFetch_AccountInfoServerError(t *testing.T) {
	server, _ := newServer(t, `{}`, `[]`, http.StatusServiceUnavailable)
	defer server.Close()

	_, err := newTestClient(server.URL, "test_key").Fetch(context.Background(), "EUR")
	assert.True(t, domain.IsNetwork(err))
}

func TestFetch_WrappedPortfolio(t *testing.T) {
	server, _ := newServer(t, `{"currencyCode":"EUR"}`, `{"items":[{"ticker":"X_US_EQ","value":10}]}`, http.StatusOK)
	defer server.Close()

	holdings, err := newTestClient(server.URL, "test_key").Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.InDelta(t, 10, holdings[0].Amount, 1e-9)
}

func TestFetch_MalformedPortfolio(t *testing.T) {
	server, _ := newServer(t, `{"currencyCode":"EUR"}`, `[{"ticker":`, http.StatusOK)
	defer server.Close()

	_, err := newTestClient(server.URL, "test_key").Fetch(context.Background(), "EUR")
	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestFetch_MissingKey(t *testing.T) {
	_, err := NewClient("", zerolog.Nop()).Fetch(context.Background(), "EUR")
	assert.True(t, domain.IsAuth(err))
}

func TestClient_IsTargetIndependent(t *testing.T) {
	var src domain.HoldingSource = NewClient("key", zerolog.Nop())
	ti, ok := src.(domain.TargetIndependent)
	require.True(t, ok)
	assert.True(t, ti.TargetIndependent())
}
