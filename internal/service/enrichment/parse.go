package enrichment

import (
	"strings"

	"github.com/shopspring/decimal"
)

var suffixes = map[byte]decimal.Decimal{
	'K': decimal.New(1, 3),
	'M': decimal.New(1, 6),
	'B': decimal.New(1, 9),
	'T': decimal.New(1, 12),
}

// parseNumber reads values such as "1,234.5", "$180.20" or "2.4B". A dash or
// blank means the provider has no value.
func parseNumber(s string) *float64 {
	s = strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return nil
	}
	mult := decimal.NewFromInt(1)
	if m, ok := suffixes[s[len(s)-1]]; ok {
		mult = m
		s = s[:len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f, _ := d.Mul(mult).Float64()
	return &f
}

// parsePercent reads "12.5%" as 12.5.
func parsePercent(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "-" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// parseVolatility splits the "week month" pair, e.g. "3.21% 2.85%".
func parseVolatility(s string) (week, month *float64) {
	parts := strings.Fields(s)
	if len(parts) > 0 {
		week = parsePercent(parts[0])
	}
	if len(parts) > 1 {
		month = parsePercent(parts[1])
	}
	return week, month
}

func text(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" {
		return ""
	}
	return s
}
