package pricing

import "errors"

// ErrInvalidAmount is returned for negative or malformed monetary input.
var ErrInvalidAmount = errors.New("invalid amount")

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Total    Money
}

// Subtotal sums qty * unit price over all positive-quantity items.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compute calculates totals given already validated adjustments. The total is
// not clamped: a discount larger than subtotal plus tax yields a negative total.
func Compute(items []Item, discount, tax Money) Summary {
	subtotal := Subtotal(items)
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal - discount + tax,
	}
}

// ComputeChecked validates the adjustments before computing totals.
func ComputeChecked(items []Item, discount, tax Money) (Summary, error) {
	if discount < 0 {
		return Summary{}, errors.Join(ErrInvalidAmount, errors.New("discount must not be negative"))
	}
	if tax < 0 {
		return Summary{}, errors.Join(ErrInvalidAmount, errors.New("tax must not be negative"))
	}
	return Compute(items, discount, tax), nil
}

// LoyaltyRule awards PointsPerStep points for every SpendPerPoint minor units spent.
type LoyaltyRule struct {
	SpendPerPoint Money
	PointsPerStep int64
}

// Points returns the loyalty points earned for total.
func (r LoyaltyRule) Points(total Money) int64 {
	if r.SpendPerPoint <= 0 || r.PointsPerStep <= 0 || total <= 0 {
		return 0
	}
	return (total / r.SpendPerPoint) * r.PointsPerStep
}
