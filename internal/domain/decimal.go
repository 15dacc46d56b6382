package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Accepted decimal range. Prices and quantities outside it are rejected
// before they reach the ledger.
const (
	MinDecimalExponent = -18
	MaxDecimalExponent = 18
	MaxDecimalDigits   = 36

	maxDecimalLiteral = 64
)

// ParseDecimal parses a decimal literal such as "40000", "0.5" or "-12.25".
// Surrounding whitespace is ignored. Binary floats are never involved, so
// "0.1" is exactly one tenth. Values outside the accepted range fail with
// ErrDecimalOutOfRange.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty decimal value")
	}
	if len(s) > maxDecimalLiteral {
		return decimal.Zero, fmt.Errorf("%w: literal longer than %d characters", ErrDecimalOutOfRange, maxDecimalLiteral)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value %q", s)
	}
	if err := CheckDecimalBounds(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckDecimalBounds reports whether d's exponent and coefficient fit the
// accepted range.
func CheckDecimalBounds(d decimal.Decimal) error {
	if exp := d.Exponent(); exp < MinDecimalExponent || exp > MaxDecimalExponent {
		return fmt.Errorf("%w: exponent %d outside [%d, %d]",
			ErrDecimalOutOfRange, exp, MinDecimalExponent, MaxDecimalExponent)
	}
	if n := len(new(big.Int).Abs(d.Coefficient()).String()); n > MaxDecimalDigits {
		return fmt.Errorf("%w: %d significant digits, at most %d",
			ErrDecimalOutOfRange, n, MaxDecimalDigits)
	}
	return nil
}

// DecimalNumber returns d as a JSON number literal carrying its exact
// decimal digits.
func DecimalNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
