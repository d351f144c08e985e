package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// DiscountKind distinguishes percentage discounts from fixed amounts.
type DiscountKind string

const (
	// DiscountPercent interprets Value as a percentage in [0,100].
	DiscountPercent DiscountKind = "percent"
	// DiscountFixed interprets Value as an absolute amount in minor units.
	DiscountFixed DiscountKind = "fixed"
)

// Discount describes a single reduction applied either to one line or to the whole cart.
type Discount struct {
	Kind  DiscountKind
	Value Money
}

// Line describes a line item used for totals calculation.
type Line struct {
	Qty       int
	UnitPrice Money
	Discount  *Discount
}

// LineAmounts holds the per-line derivation.
type LineAmounts struct {
	Gross    Money
	Discount Money
	Net      Money
}

// Summary aggregates computed cart totals. Tax is carried for wire
// compatibility and is always zero.
type Summary struct {
	Subtotal       Money
	ItemDiscount   Money
	GlobalDiscount Money
	Tax            Money
	Total          Money
}

// ComputeLine calculates gross, discount and net amounts for one line. The
// discount amount is capped at the line gross so a line can never go negative.
func ComputeLine(l Line) LineAmounts {
	if l.Qty <= 0 || l.UnitPrice < 0 {
		return LineAmounts{}
	}
	gross := Money(l.Qty) * l.UnitPrice
	discount := Amount(l.Discount, gross)
	return LineAmounts{Gross: gross, Discount: discount, Net: gross - discount}
}

// Amount resolves a discount against the provided base, clamped to [0, base].
func Amount(d *Discount, base Money) Money {
	if d == nil || base <= 0 {
		return 0
	}
	var amount Money
	switch d.Kind {
	case DiscountPercent:
		amount = base * d.Value / 100
	case DiscountFixed:
		amount = d.Value
	default:
		return 0
	}
	if amount > base {
		amount = base
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// Compute calculates cart totals for the provided lines and optional global
// discount.
//
// The global discount is resolved against the gross subtotal, not the
// item-discounted subtotal: item and global discounts stack subtractively,
// they never compound. The resolved amount is then capped at whatever the
// item discounts left over so the total cannot go below zero.
func Compute(lines []Line, global *Discount) Summary {
	var subtotal, itemDiscount Money
	for _, l := range lines {
		amounts := ComputeLine(l)
		subtotal += amounts.Gross
		itemDiscount += amounts.Discount
	}

	globalDiscount := Amount(global, subtotal)
	if remaining := subtotal - itemDiscount; globalDiscount > remaining {
		globalDiscount = remaining
	}
	if globalDiscount < 0 {
		globalDiscount = 0
	}

	return Summary{
		Subtotal:       subtotal,
		ItemDiscount:   itemDiscount,
		GlobalDiscount: globalDiscount,
		Tax:            0,
		Total:          subtotal - itemDiscount - globalDiscount,
	}
}
