package bitvavo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/portfoliowidget/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name      string
		secret    string
		timestamp string
		method    string
		path      string
		body      string
		expected  string
	}{
		{
			name:      "balance request",
			secret:    "secret",
			timestamp: "1700000000000",
			method:    "GET",
			path:      "/v2/balance",
			expected:  "ce9a94857d1ec9779477d9159a19670a80ea11393e31f116950910225cfade55",
		},
		{
			name:      "request with body",
			secret:    "bitvavo",
			timestamp: "1548172481125",
			method:    "POST",
			path:      "/v2/order",
			body:      `{"market":"BTC-EUR","side":"buy","price":"5000","amount":"1.23","orderType":"limit"}`,
			expected:  "44d022723a20973a18f7ee97398b9fdd405d2d019c8d39e24b8cc0dcb39ca016",
		},
		{
			name:      "method is upper-cased",
			secret:    "secret",
			timestamp: "1700000000000",
			method:    "get",
			path:      "/v2/balance",
			expected:  "ce9a94857d1ec9779477d9159a19670a80ea11393e31f116950910225cfade55",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sign(tt.secret, tt.timestamp, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, 64)
		})
	}
}

// fakeExchange serves /v2/balance (signed) and /v2/ticker/price (public)
func fakeExchange(t *testing.T, balances interface{}, prices map[string]interface{}) (*httptest.Server, *int) {
	t.Helper()
	tickerCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v2/balance":
			ts := r.Header.Get("Bitvavo-Access-Timestamp")
			expected := sign("test_secret", ts, r.Method, "/v2/balance", "")
			if r.Header.Get("Bitvavo-Access-Key") != "test_key" || r.Header.Get("Bitvavo-Access-Signature") != expected {
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(map[string]interface{}{"errorCode": 309, "error": "invalid signature"})
				return
			}
			json.NewEncoder(w).Encode(balances)
		case "/v2/ticker/price":
			tickerCalls++
			market := r.URL.Query().Get("market")
			price, ok := prices[market]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]interface{}{"errorCode": 205, "error": "market not found"})
				return
			}
			if raw, isRaw := price.(string); isRaw && raw == "MALFORMED" {
				w.Write([]byte(`{"market": "` + market + `", "price": `))
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"market": market, "price": price})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, &tickerCalls
}

func newTestClient(serverURL string) *Client {
	c := NewClient("test_key", "test_secret", zerolog.New(nil).Level(zerolog.Disabled), WithBaseURL(serverURL+"/v2"))
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestFetch_ValuesBalances(t *testing.T) {
	balances := []map[string]interface{}{
		{"symbol": "EUR", "available": "100.50", "inOrder": "0"},
		{"symbol": "BTC", "available": "0.5", "inOrder": "0.25"},
		{"symbol": "ETH", "available": "0", "inOrder": "0"},
		{"symbol": "ADA", "available": "-1", "inOrder": "0"},
	}
	server, tickerCalls := fakeExchange(t, balances, map[string]interface{}{"BTC-EUR": "40000"})
	defer server.Close()

	client := newTestClient(server.URL)
	holdings, err := client.Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	assert.Equal(t, "EUR", holdings[0].Symbol)
	assert.Nil(t, holdings[0].PriceHint)
	assert.InDelta(t, 100.5, holdings[0].NativeValue(), 1e-9)

	assert.Equal(t, "BTC", holdings[1].Symbol)
	assert.InDelta(t, 0.75, holdings[1].Amount, 1e-9)
	require.NotNil(t, holdings[1].PriceHint)
	assert.InDelta(t, 30000, holdings[1].NativeValue(), 1e-6)
	assert.Equal(t, "EUR", holdings[1].CurrencyHint["currency"])

	assert.Equal(t, 1, *tickerCalls, "only non-target symbols hit the public ticker")
	for _, h := range holdings {
		assert.Equal(t, SourceName, h.Source)
		assert.Greater(t, h.Amount, 0.0)
	}
}

func TestFetch_BadTickerIsolated(t *testing.T) {
	balances := []map[string]interface{}{
		{"symbol": "BTC", "available": "1", "inOrder": "0"},
		{"symbol": "DOGE", "available": "10", "inOrder": "0"},
		{"symbol": "XRP", "available": "5", "inOrder": "0"},
	}
	prices := map[string]interface{}{"BTC-EUR": "40000", "DOGE-EUR": "MALFORMED"}
	server, _ := fakeExchange(t, balances, prices)
	defer server.Close()

	holdings, err := newTestClient(server.URL).Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	assert.NoError(t, holdings[0].Err)

	var parseErr *domain.ParseError
	assert.ErrorAs(t, holdings[1].Err, &parseErr, "malformed ticker JSON is a parse error")
	assert.True(t, domain.IsNetwork(holdings[2].Err), "unknown market is a non-2xx status")
}

func TestFetch_BadSignatureIsAuthError(t *testing.T) {
	server, _ := fakeExchange(t, []interface{}{}, nil)
	defer server.Close()

	client := NewClient("test_key", "wrong_secret", zerolog.Nop(), WithBaseURL(server.URL+"/v2"))
	_, err := client.Fetch(context.Background(), "EUR")

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
}

func TestFetch_MissingCredentials(t *testing.T) {
	client := NewClient("", "", zerolog.Nop())
	_, err := client.Fetch(context.Background(), "EUR")
	assert.True(t, domain.IsAuth(err))
}

func TestFetch_SendsSigningHeaders(t *testing.T) {
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.accessWindow = 10000
	_, err := client.Fetch(context.Background(), "EUR")
	require.NoError(t, err)

	assert.Equal(t, "test_key", headers.Get("Bitvavo-Access-Key"))
	assert.Equal(t, "1700000000000", headers.Get("Bitvavo-Access-Timestamp"))
	assert.Equal(t, "10000", headers.Get("Bitvavo-Access-Window"))
	assert.Equal(t, sign("test_secret", "1700000000000", "GET", "/v2/balance", ""), headers.Get("Bitvavo-Access-Signature"))
}

func TestFetch_UnexpectedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"nope"`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), "EUR")
	var parseErr *domain.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestFetch_CancelledContext(t *testing.T) {
	server, _ := fakeExchange(t, []map[string]interface{}{{"symbol": "BTC", "available": "1"}}, map[string]interface{}{"BTC-EUR": "1"})
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).Fetch(ctx, "EUR")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestName(t *testing.T) {
	assert.Equal(t, "bitvavo", NewClient("k", "s", zerolog.Nop()).Name())
}
