package forecast

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatUSD renders a price with a dollar sign, thousands separators, and two
// decimals: 1234567.891 becomes "$1,234,567.89".
func FormatUSD(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// ParseUSD reverses FormatUSD: strip "$" and ",", parse the remainder.
func ParseUSD(s string) (float64, error) {
	clean := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse currency %q: %w", s, err)
	}
	return v, nil
}

// QuantileLabel names a quantile column by its percentile ordinal: 0.05 is
// "5th", 0.5 is "50th", 0.99 is "99th".
func QuantileLabel(q float64) string {
	return humanize.Ordinal(int(math.Round(q * 100)))
}
