package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

func TestAddItemMergesMatchingVariant(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	shirt := Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}

	first := cart.AddItem(shirt, "M", "red")
	second := cart.AddItem(shirt, "M", "red")

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 2, second.Qty)
	require.Len(t, cart.Lines(), 1)
}

func TestAddItemDifferentVariantAppends(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	shirt := Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}

	cart.AddItem(shirt, "M", "red")
	cart.AddItem(shirt, "L", "red")
	cart.AddItem(shirt, "M", "blue")

	lines := cart.Lines()
	require.Len(t, lines, 3)
	require.Equal(t, "M", lines[0].Size)
	require.Equal(t, "L", lines[1].Size)
	require.Equal(t, "blue", lines[2].Color)
}

func TestChangeQuantityFloorsAtOne(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	line := cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}, "", "")

	cart.ChangeQuantity(line.ID, 4)
	require.Equal(t, 5, cart.Lines()[0].Qty)

	cart.ChangeQuantity(line.ID, -100)
	require.Equal(t, 1, cart.Lines()[0].Qty)
	require.Len(t, cart.Lines(), 1)
}

func TestRemoveItemDeletesWholeLine(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	keep := cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}, "", "")
	drop := cart.AddItem(Product{ID: "p-2", Name: "Hat", UnitPrice: 3000}, "", "")
	cart.ChangeQuantity(drop.ID, 3)

	cart.RemoveItem(drop.ID)

	lines := cart.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, keep.ID, lines[0].ID)
}

func TestClearDropsGlobalDiscount(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}, "", "")
	cart.SetGlobalDiscount(&pricing.Discount{Kind: pricing.DiscountPercent, Value: 10})

	cart.Clear()

	require.True(t, cart.IsEmpty())
	require.Nil(t, cart.GlobalDiscount())
}

func TestItemDiscountLifecycle(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	line := cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 10000}, "", "")

	require.True(t, cart.SetItemDiscount(line.ID, pricing.Discount{Kind: pricing.DiscountFixed, Value: 2000}))
	require.Equal(t, pricing.Money(8000), cart.Totals().Total)

	require.True(t, cart.ClearItemDiscount(line.ID))
	require.Equal(t, pricing.Money(10000), cart.Totals().Total)
}

func TestLinesReturnsCopies(t *testing.T) {
	t.Parallel()

	cart := NewCart()
	cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}, "", "")

	lines := cart.Lines()
	lines[0].Qty = 99

	require.Equal(t, 1, cart.Lines()[0].Qty)
}
