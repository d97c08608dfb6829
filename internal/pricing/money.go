package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency describes how minor units map onto displayed amounts.
type Currency struct {
	Code        string
	MinorDigits int32
}

// IDR is the default currency; rupiah amounts carry no minor digits.
var IDR = Currency{Code: "IDR", MinorDigits: 0}

// ParseAmount converts user entered text ("5000", "12.50") into minor units.
// Empty, non-numeric and negative input is rejected with ErrInvalidAmount.
// Extra precision is rounded half-up to the currency's minor unit.
func ParseAmount(text string, cur Currency) (Money, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "")
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, text)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, text)
	}
	minor := d.Round(cur.MinorDigits).Shift(cur.MinorDigits)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %q cannot be represented", ErrInvalidAmount, text)
	}
	if minor.GreaterThan(maxMoney) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, text)
	}
	return minor.IntPart(), nil
}

var maxMoney = decimal.NewFromInt(math.MaxInt64)

// PercentOf returns base * bps / 10000 rounded half-up to the minor unit.
func PercentOf(base Money, bps int64) Money {
	if base == 0 || bps == 0 {
		return 0
	}
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}

// ParsePercent converts "11%" or "2.5%" into basis points.
func ParsePercent(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimSuffix(trimmed, "%")
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty percentage", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(trimmed))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a percentage", ErrInvalidAmount, text)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, text)
	}
	bps := d.Shift(2).Round(0)
	if bps.GreaterThan(maxMoney) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, text)
	}
	return bps.IntPart(), nil
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders minor units as grouped decimal text, e.g. 4200050 USD -> "42,000.50".
func FormatAmount(amount Money, cur Currency) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if cur.MinorDigits <= 0 {
		return sign + printer.Sprintf("%d", amount)
	}
	scale := Money(1)
	for i := int32(0); i < cur.MinorDigits; i++ {
		scale *= 10
	}
	whole := amount / scale
	frac := amount % scale
	return fmt.Sprintf("%s%s.%0*d", sign, printer.Sprintf("%d", whole), int(cur.MinorDigits), frac)
}
