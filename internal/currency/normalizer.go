package currency

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noahpengding/peng-finance/internal/logger"
)

// symbols is the recognized set of leading currency symbols. At most one is
// stripped, after the sign.
var symbols = []string{"$", "€", "£", "¥"}

// RateSource answers "how many units of base currency is one unit of code
// worth". Implementations decide whether rates are live or pinned; the
// normalizer never reaches out on its own.
type RateSource interface {
	Rate(ctx context.Context, code string) (float64, error)
}

// Normalizer parses raw amount strings and converts them into the base
// currency.
type Normalizer struct {
	base  string
	rates RateSource
}

// NewNormalizer creates a Normalizer converting into base using rates.
func NewNormalizer(base string, rates RateSource) *Normalizer {
	return &Normalizer{base: base, rates: rates}
}

// Base returns the base currency code.
func (n *Normalizer) Base() string {
	return n.base
}

// Normalize parses raw as a signed amount and converts it into the base
// currency. A leading '-' marks a debit; one leading currency symbol is
// stripped. A remainder that does not parse as a decimal is logged and
// substituted with 0.0 rather than failing the caller's import. A failed
// rate lookup is logged and leaves the amount unconverted.
func (n *Normalizer) Normalize(ctx context.Context, raw, code string) float64 {
	log := logger.FromContext(ctx)

	s := strings.TrimSpace(raw)
	sign := decimal.NewFromInt(1)
	if strings.HasPrefix(s, "-") {
		sign = decimal.NewFromInt(-1)
		s = s[1:]
	}
	for _, sym := range symbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimPrefix(s, sym)
			break
		}
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		log.Warn().Str("raw_amount", raw).Msg("Malformed amount, defaulting to 0.0")
		return 0.0
	}

	if code != "" && code != n.base {
		rate, err := n.rates.Rate(ctx, code)
		if err != nil {
			log.Warn().
				Err(err).
				Str("currency", code).
				Str("base", n.base).
				Msg("Rate lookup failed, keeping unconverted amount")
		} else {
			amount = amount.Mul(decimal.NewFromFloat(rate)).Round(2)
		}
	}

	v, _ := amount.Mul(sign).Float64()
	return v
}
