/**
 * @description
 * This package implements exact integer-cent arithmetic for the ledger. All
 * monetary values in the system are signed 64-bit integers denominated in
 * cents; this package is the only place where rounding happens, so every fee
 * and split computed elsewhere stays exact by construction.
 *
 * Key features:
 * - Overflow-checked Add/Sub/Mul (silent truncation could corrupt money).
 * - Basis-point and percent multiplication with half-up rounding.
 * - Human-facing parse ("$1,234.56") and USD formatting.
 *
 * @dependencies
 * - github.com/Rhymond/go-money: currency-aware display formatting.
 * - github.com/shopspring/decimal: exact decimal parsing for user input.
 */

package money

import (
	"errors"
	"math"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	// ErrArithmeticOverflow reports signed 64-bit overflow. This is a
	// programming-contract violation, never a business condition.
	ErrArithmeticOverflow = errors.New("money: arithmetic overflow")

	// ErrDivisionByZero reports a zero denominator passed to DivRoundHalfUp.
	ErrDivisionByZero = errors.New("money: division by zero")

	// ErrInvalidAmount reports unparseable user input.
	ErrInvalidAmount = errors.New("money: invalid amount")
)

// Add returns a+b, failing on signed 64-bit overflow.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing on signed 64-bit overflow.
func Sub(a, b int64) (int64, error) {
	if b == math.MinInt64 {
		if a >= 0 {
			return 0, ErrArithmeticOverflow
		}
		return a - b, nil
	}
	return Add(a, -b)
}

// Mul returns a*b, failing on signed 64-bit overflow.
func Mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/b != a {
		return 0, ErrArithmeticOverflow
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, ErrArithmeticOverflow
	}
	return product, nil
}

// MulBps applies a fee rate expressed in basis points (1/100th of a percent)
// to an amount, rounding half-up: round_half_up(amountCents * bps / 10000).
func MulBps(amountCents, bps int64) (int64, error) {
	scaled, err := Mul(amountCents, bps)
	if err != nil {
		return 0, err
	}
	return DivRoundHalfUp(scaled, 10_000)
}

// PercentOf returns round_half_up(amountCents * percent / 100).
func PercentOf(amountCents, percent int64) (int64, error) {
	scaled, err := Mul(amountCents, percent)
	if err != nil {
		return 0, err
	}
	return DivRoundHalfUp(scaled, 100)
}

// DivRoundHalfUp divides numerator by denominator with sign-preserving
// half-up rounding: the truncating quotient is adjusted by one in the
// numerator's direction whenever the remainder's absolute value reaches half
// the denominator (an even denominator has an exact half; an odd one cannot,
// so its half always rounds up).
func DivRoundHalfUp(numerator, denominator int64) (int64, error) {
	if denominator == 0 {
		return 0, ErrDivisionByZero
	}
	quotient := numerator / denominator
	remainder := numerator % denominator
	if remainder == 0 {
		return quotient, nil
	}
	remAbs := remainder
	if remAbs < 0 {
		remAbs = -remAbs
	}
	denAbs := denominator
	if denAbs < 0 {
		denAbs = -denAbs
	}
	if 2*remAbs >= denAbs {
		if numerator < 0 {
			quotient--
		} else {
			quotient++
		}
	}
	return quotient, nil
}

// maxCents bounds parsed input to the int64 cent range.
var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseCents parses human input such as "$1,234.565" into integer cents.
// Currency symbols and thousands separators are stripped, the value is parsed
// as a base-10 decimal and rounded to two fractional digits half-up.
// Non-numeric input fails with ErrInvalidAmount.
func ParseCents(text string) (int64, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		return 0, ErrArithmeticOverflow
	}
	return cents.IntPart(), nil
}

// FormatUSD renders cents as a dollar string with sign, thousands separators
// and exactly two fractional digits, e.g. -123456 -> "-$1,234.56".
func FormatUSD(cents int64) string {
	return gomoney.New(cents, gomoney.USD).Display()
}
