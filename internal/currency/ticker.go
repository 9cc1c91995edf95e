package currency

import "strings"

// countryCurrencies maps exchange country segments found in broker tickers
// (e.g. AAPL_US_EQ) to the currency instruments there trade in.
var countryCurrencies = map[string]string{
	"US": "USD",
	"GB": "GBP",
	"UK": "GBP",
	"DE": "EUR",
	"FR": "EUR",
	"NL": "EUR",
	"ES": "EUR",
	"IT": "EUR",
	"BE": "EUR",
	"AT": "EUR",
	"PT": "EUR",
	"IE": "EUR",
	"FI": "EUR",
	"CH": "CHF",
	"CA": "CAD",
	"JP": "JPY",
	"HK": "HKD",
	"AU": "AUD",
	"SE": "SEK",
	"NO": "NOK",
	"DK": "DKK",
	"PL": "PLN",
	"CZ": "CZK",
	"HU": "HUF",
}

func splitTicker(ticker string) []string {
	return strings.FieldsFunc(ticker, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
}

// InferFromTicker guesses a currency from ticker segments. Country segments
// are matched before segments that are themselves currency codes. In a
// multi-segment ticker the first segment is the instrument symbol and is
// never matched, so AAPL_US_EQ yields USD and ALL_US_EQ does not yield ALL.
func InferFromTicker(ticker string) (string, bool) {
	segments := splitTicker(strings.ToUpper(strings.TrimSpace(ticker)))
	if len(segments) == 0 {
		return "", false
	}
	if len(segments) > 1 {
		segments = segments[1:]
	}

	for _, seg := range segments {
		if code, ok := countryCurrencies[seg]; ok {
			return code, true
		}
	}
	for _, seg := range segments {
		if LooksLikeCurrencyCode(seg) {
			return seg, true
		}
	}
	return "", false
}
