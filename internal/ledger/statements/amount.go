package statements

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a bank-formatted amount. It tolerates surrounding
// whitespace and currency noise, thousands separators, a leading sign, and
// the trailing-minus convention ("50.00-").
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if strings.HasSuffix(s, "-") && len(s) > 1 {
		s = "-" + s[:len(s)-1]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("statements: unparseable amount %q", raw)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("statements: unparseable amount %q: %w", raw, err)
	}
	return d, nil
}

// normalizeDescription collapses runs of whitespace so dedupe keys stay
// stable across exports.
func normalizeDescription(s string) string {
	out := strings.Join(strings.Fields(s), " ")
	if len(out) > 255 {
		out = out[:255]
	}
	return out
}
