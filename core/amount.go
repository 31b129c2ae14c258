package core

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the precision of the governance token.
const DefaultDecimals int32 = 18

// ParseAmount parses a plain decimal token amount. Empty or malformed input yields zero and false,
// so callers treat it as "no amount" instead of failing. Exponent notation is malformed: a huge
// exponent would make every later comparison allocate that many digits.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string) decimal.Decimal {
	d, ok := ParseAmount(s)
	if !ok {
		panic("invalid amount: " + s)
	}
	return d
}

// IsPositive reports whether s parses to an amount greater than zero.
func IsPositive(s string) bool {
	d, ok := ParseAmount(s)
	return ok && d.IsPositive()
}

// FromWei converts a raw integer amount into token units.
func FromWei(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ToWei converts token units into the raw integer amount, dropping digits beyond the token precision.
func ToWei(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).BigInt()
}

// FormatAmount renders an amount with at most places fractional digits, trailing zeros trimmed.
func FormatAmount(d decimal.Decimal, places int32) string {
	return d.Truncate(places).String()
}
