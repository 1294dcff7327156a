package wallet

import (
	"math/big"
	"strings"
)

// FormatUnits renders an integer amount of the smallest unit as a decimal
// string with trailing zeros trimmed, always keeping one fractional digit
// ("1.5", "2.0", "0.000001").
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0.0"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, base, new(big.Int))

	fs := frac.String()
	if decimals > 0 {
		fs = strings.Repeat("0", int(decimals)-len(fs)) + fs
	}
	fs = strings.TrimRight(fs, "0")
	if fs == "" {
		fs = "0"
	}

	out := whole.String() + "." + fs
	if neg {
		out = "-" + out
	}
	return out
}

// ParseUnits converts a decimal string into the smallest unit. Digits past
// the unit's precision are truncated.
func ParseUnits(s string, decimals uint8) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(decimals) {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, false
	}
	if neg {
		v.Neg(v)
	}
	return v, true
}
