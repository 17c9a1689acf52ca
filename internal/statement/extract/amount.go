package extract

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAmount strips thousands separators and surrounding space.
// "1,234.00" -> "1234.00"
func NormalizeAmount(amount string) string {
	return strings.TrimSpace(strings.ReplaceAll(amount, ",", ""))
}

// FormatAmount parses a normalized or raw amount and renders it with two
// fraction digits, e.g. "1234" -> "1234.00".
func FormatAmount(amount string) (string, error) {
	raw := NormalizeAmount(amount)
	raw = strings.TrimLeft(raw, "₹€£$ ")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return d.StringFixed(2), nil
}
