package pricing

import "testing"

func TestComputeGlobalPercentOffGross(t *testing.T) {
	lines := []Line{{Qty: 2, UnitPrice: 100_00}}
	global := &Discount{Kind: DiscountPercent, Value: 10}
	s := Compute(lines, global)
	if s.Subtotal != 200_00 {
		t.Fatalf("expected subtotal 20000, got %d", s.Subtotal)
	}
	if s.ItemDiscount != 0 {
		t.Fatalf("expected no item discount, got %d", s.ItemDiscount)
	}
	if s.GlobalDiscount != 20_00 {
		t.Fatalf("expected global discount 2000, got %d", s.GlobalDiscount)
	}
	if s.Total != 180_00 {
		t.Fatalf("expected total 18000, got %d", s.Total)
	}
}

func TestComputeStackingOrderIsSubtractive(t *testing.T) {
	// The global percentage must resolve against the gross subtotal even when
	// item discounts already apply; 10% of 200, never 10% of 185.
	lines := []Line{{Qty: 2, UnitPrice: 100_00, Discount: &Discount{Kind: DiscountFixed, Value: 15_00}}}
	global := &Discount{Kind: DiscountPercent, Value: 10}
	s := Compute(lines, global)
	if s.ItemDiscount != 15_00 {
		t.Fatalf("expected item discount 1500, got %d", s.ItemDiscount)
	}
	if s.GlobalDiscount != 20_00 {
		t.Fatalf("expected global discount 2000 (off gross), got %d", s.GlobalDiscount)
	}
	if s.Total != 165_00 {
		t.Fatalf("expected total 16500, got %d", s.Total)
	}
	if s.Total != s.Subtotal-s.ItemDiscount-s.GlobalDiscount {
		t.Fatalf("totals identity violated: %+v", s)
	}
}

func TestComputeTaxAlwaysZero(t *testing.T) {
	s := Compute([]Line{{Qty: 3, UnitPrice: 999}}, nil)
	if s.Tax != 0 {
		t.Fatalf("expected zero tax, got %d", s.Tax)
	}
	if s.Total != 2997 {
		t.Fatalf("expected total 2997, got %d", s.Total)
	}
}

func TestComputeLineClampsFixedDiscount(t *testing.T) {
	amounts := ComputeLine(Line{Qty: 1, UnitPrice: 10_00, Discount: &Discount{Kind: DiscountFixed, Value: 25_00}})
	if amounts.Discount != 10_00 {
		t.Fatalf("expected discount capped at gross, got %d", amounts.Discount)
	}
	if amounts.Net != 0 {
		t.Fatalf("expected zero net, got %d", amounts.Net)
	}
}

func TestComputeGlobalClampedToRemaining(t *testing.T) {
	// Item discounts already consumed most of the cart; the global discount is
	// computed off gross but capped so the total never goes negative.
	lines := []Line{{Qty: 1, UnitPrice: 100_00, Discount: &Discount{Kind: DiscountPercent, Value: 90}}}
	global := &Discount{Kind: DiscountFixed, Value: 50_00}
	s := Compute(lines, global)
	if s.GlobalDiscount != 10_00 {
		t.Fatalf("expected global discount capped at 1000, got %d", s.GlobalDiscount)
	}
	if s.Total != 0 {
		t.Fatalf("expected zero total, got %d", s.Total)
	}
}

func TestComputeIgnoresNonPositiveQty(t *testing.T) {
	s := Compute([]Line{{Qty: 0, UnitPrice: 100_00}, {Qty: 1, UnitPrice: 50_00}}, nil)
	if s.Subtotal != 50_00 {
		t.Fatalf("expected subtotal 5000, got %d", s.Subtotal)
	}
}

func TestAmountNegativeValue(t *testing.T) {
	if got := Amount(&Discount{Kind: DiscountFixed, Value: -500}, 10_00); got != 0 {
		t.Fatalf("expected negative discount to resolve to 0, got %d", got)
	}
}
