package exchangerate

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint describes one public rate API: where to ask and which candidate
// keys hold the rate in its response.
type Endpoint struct {
	ID      string
	BaseURL string
	Path    func(base, quote string) string
	Keys    func(base, quote string) []string
}

// ratesMapKeys covers APIs answering {"rates": {"EUR": 0.9, ...}}
func ratesMapKeys(_, quote string) []string {
	return []string{"$.rates." + quote, quote}
}

// Endpoints are the known providers by id
var Endpoints = map[string]Endpoint{
	"exchangerate-api": {
		ID:      "exchangerate-api",
		BaseURL: "https://api.exchangerate-api.com/v4",
		Path: func(base, _ string) string {
			return "/latest/" + url.PathEscape(base)
		},
		Keys: ratesMapKeys,
	},
	"frankfurter": {
		ID:      "frankfurter",
		BaseURL: "https://api.frankfurter.app",
		Path: func(base, quote string) string {
			return fmt.Sprintf("/latest?from=%s&to=%s", url.QueryEscape(base), url.QueryEscape(quote))
		},
		Keys: ratesMapKeys,
	},
	"open-er-api": {
		ID:      "open-er-api",
		BaseURL: "https://open.er-api.com/v6",
		Path: func(base, _ string) string {
			return "/latest/" + url.PathEscape(base)
		},
		Keys: ratesMapKeys,
	},
	"currency-api": {
		ID:      "currency-api",
		BaseURL: "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1",
		Path: func(base, _ string) string {
			return "/currencies/" + strings.ToLower(base) + ".json"
		},
		// {"date": "...", "usd": {"eur": 0.92}}
		Keys: func(base, quote string) []string {
			return []string{"$." + strings.ToLower(base) + "." + strings.ToLower(quote), strings.ToLower(quote)}
		},
	},
	"exchangerate-host": {
		ID:      "exchangerate-host",
		BaseURL: "https://api.exchangerate.host",
		Path: func(base, quote string) string {
			return fmt.Sprintf("/convert?from=%s&to=%s&amount=1", url.QueryEscape(base), url.QueryEscape(quote))
		},
		// {"result": 0.92} or {"info": {"rate": 0.92}}
		Keys: func(_, _ string) []string {
			return []string{"result", "$.info.rate", "rate", "quote"}
		},
	},
}

// DefaultOrder is the provider chain used when none is configured
var DefaultOrder = []string{
	"exchangerate-api",
	"frankfurter",
	"open-er-api",
	"currency-api",
	"exchangerate-host",
}
