// Package display turns valuation summaries into the strings the widget shows.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	// FailedTotal is shown in place of a total that could not be computed
	FailedTotal = "–"
	// Masked replaces every value while values are hidden
	Masked = "******"
	// NotAvailable is shown for a missing timestamp
	NotAvailable = "N/A"
	// TimestampLayout formats the last-updated time
	TimestampLayout = "2006-01-02 15:04"
)

// FormatTotal renders value in currency with its symbol and grouping,
// e.g. "€1,234.56". Codes unknown to the currency table fall back to
// "1234.56 XYZ".
func FormatTotal(value float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%s %s", decimal.NewFromFloat(value).StringFixed(2), code)
	}

	factor := decimal.New(1, int32(cur.Fraction))
	minor := decimal.NewFromFloat(value).Mul(factor).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

// FormatTimestamp renders t as "2006-01-02 15:04", or N/A when unset
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.Format(TimestampLayout)
}

// RelativeTime describes how long before now t was
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return NotAvailable
	}

	elapsed := now.Sub(t)
	minutes := int(elapsed / time.Minute)
	hours := int(elapsed / time.Hour)
	days := hours / 24

	switch {
	case minutes < 1:
		return "just now"
	case minutes == 1:
		return "1 minute ago"
	case hours < 1:
		return fmt.Sprintf("%d minutes ago", minutes)
	case hours == 1:
		return "1 hour ago"
	case days < 1:
		return fmt.Sprintf("%d hours ago", hours)
	case days == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}
