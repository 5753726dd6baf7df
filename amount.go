package oneclick

import (
	"math/big"
	"strings"
)

// WrappedTokenDecimals is the fixed precision of the wrapped native token.
const WrappedTokenDecimals = 18

// ParseAmount converts a human-readable decimal such as "0.01" into the
// token's smallest unit. Only plain non-negative decimals are accepted: no
// sign, no exponent, no separators, and at most decimals fractional digits.
// A missing integer or fractional part (".5", "1.") is treated as zero.
func ParseAmount(s string, decimals uint8) (*big.Int, error) {
	if s == "" {
		return nil, &AmountError{Input: s, Reason: "empty"}
	}

	whole, frac, hasPoint := strings.Cut(s, ".")
	if hasPoint && whole == "" && frac == "" {
		return nil, &AmountError{Input: s, Reason: "no digits"}
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, &AmountError{Input: s, Reason: "not a non-negative decimal"}
	}
	if len(frac) > int(decimals) {
		return nil, &AmountError{Input: s, Reason: "too many decimal places"}
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(big.Int), nil
	}

	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, &AmountError{Input: s, Reason: "not a non-negative decimal"}
	}
	return amount, nil
}

// FormatAmount renders a smallest-unit amount back as a decimal string
// without trailing fractional zeros.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	digits := new(big.Int).Abs(amount).String()
	if pad := int(decimals) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	cut := len(digits) - int(decimals)
	whole, frac := digits[:cut], strings.TrimRight(digits[cut:], "0")

	var b strings.Builder
	if amount.Sign() < 0 {
		b.WriteByte('-')
	}
	b.WriteString(whole)
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// isDigits reports whether s holds only ASCII digits. The empty string counts.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
