// Package currency determines and validates the native currency of holdings.
package currency

import (
	"strings"

	"github.com/Rhymond/go-money"
)

// MinorUnit describes a broker pseudo-code quoting a currency in hundredths
type MinorUnit struct {
	Major   string
	Divisor float64
}

// minorUnits is the allow-list of non-ISO codes accepted by LooksLikeCurrencyCode
var minorUnits = map[string]MinorUnit{
	"GBX": {Major: "GBP", Divisor: 100}, // pence sterling
	"ZAC": {Major: "ZAR", Divisor: 100}, // South African cents
	"ILA": {Major: "ILS", Divisor: 100}, // Israeli agorot
}

// mixedCase spellings some brokers use for minor units
var mixedCase = map[string]string{
	"GBp": "GBX",
	"ZAc": "ZAC",
	"ILa": "ILA",
}

// LooksLikeCurrencyCode reports whether code is three uppercase letters
// forming a known ISO-4217 code or an allow-listed pseudo-code.
func LooksLikeCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	if _, ok := minorUnits[code]; ok {
		return true
	}
	return money.GetCurrency(code) != nil
}

// Normalize trims and upper-cases a candidate, mapping mixed-case minor-unit
// spellings first, and reports whether the result is a valid code.
func Normalize(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if mapped, ok := mixedCase[candidate]; ok {
		return mapped, true
	}
	code := strings.ToUpper(candidate)
	if !LooksLikeCurrencyCode(code) {
		return "", false
	}
	return code, true
}

// Major maps a minor-unit pseudo-code to its ISO currency and the factor to
// multiply amounts by. Other codes map to themselves with factor 1.
func Major(code string) (string, float64) {
	if unit, ok := minorUnits[code]; ok {
		return unit.Major, 1 / unit.Divisor
	}
	return code, 1
}
