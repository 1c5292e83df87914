package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitDigits is the fixed-point precision of every stored amount.
const MinorUnitDigits = 2

// MaxAmount bounds a single transaction amount in minor units.
const MaxAmount int64 = 1_000_000_000_00

var (
	ErrAmountFormat    = errors.New("amount must be a decimal number")
	ErrAmountPrecision = errors.New("amount has more than 2 decimal places")
	ErrAmountRange     = errors.New("amount out of range")
)

// ParseAmount converts a decimal string such as "50.00" or "12,5" into
// minor units. Zero and negative amounts are rejected.
func ParseAmount(s string) (int64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrAmountFormat, s)
	}
	minor := d.Shift(MinorUnitDigits)
	if !minor.IsInteger() {
		return 0, ErrAmountPrecision
	}
	if !minor.IsPositive() || minor.GreaterThan(decimal.NewFromInt(MaxAmount)) {
		return 0, ErrAmountRange
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a fixed two-decimal string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -MinorUnitDigits).StringFixed(MinorUnitDigits)
}
