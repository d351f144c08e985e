package pos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

func TestEnterSplitSeedsOneCashEntry(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.EnterSplit()

	allocations := p.Allocations()
	require.Len(t, allocations, 1)
	require.Equal(t, MethodCash, allocations[0].Method)
	require.Empty(t, allocations[0].Amount)
}

func TestEnterSplitKeepsExistingAllocations(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.EnterSplit()
	p.SetAllocation(0, Allocation{Method: MethodCard, Amount: "50"})
	p.EnterSingle(MethodCash)

	p.EnterSplit()
	allocations := p.Allocations()
	require.Len(t, allocations, 1)
	require.Equal(t, MethodCard, allocations[0].Method)
}

func TestRemoveLastAllocationIsNoOp(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.EnterSplit()

	require.False(t, p.RemoveAllocation(0))
	require.Len(t, p.Allocations(), 1)

	p.AddAllocation()
	require.True(t, p.RemoveAllocation(1))
	require.False(t, p.RemoveAllocation(0))
	require.Len(t, p.Allocations(), 1)
}

func TestSnapshotDetachesAllocations(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.EnterSplit()
	p.SetAllocation(0, Allocation{Method: MethodCash, Amount: "100"})

	snap := p.Snapshot()
	p.SetAllocation(0, Allocation{Method: MethodGiftCard, Amount: "100"})

	require.True(t, p.UsesGiftCard())
	require.False(t, snap.UsesGiftCard())
	require.Equal(t, MethodCash, snap.Allocations()[0].Method)
}

func TestTotalPaidSplitSumsEntries(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.EnterSplit()
	p.SetAllocation(0, Allocation{Method: MethodCash, Amount: "100"})
	p.AddAllocation()
	p.SetAllocation(1, Allocation{Method: MethodCard, Amount: "65"})

	require.Equal(t, pricing.Money(16500), p.TotalPaid(16500))
	require.True(t, p.IsFullPayment(16500))
	require.False(t, p.IsFullPayment(16600))
}

func TestTotalPaidSingleCash(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()

	// blank cash tender defaults to exact payment
	require.Equal(t, pricing.Money(16500), p.TotalPaid(16500))

	p.CashAmount = "200"
	require.Equal(t, pricing.Money(20000), p.TotalPaid(16500))

	p.CashAmount = "abc"
	require.Equal(t, pricing.Money(0), p.TotalPaid(16500))
}

func TestTotalPaidSingleNonCashImpliesFull(t *testing.T) {
	t.Parallel()

	for _, method := range []Method{MethodCard, MethodMobile, MethodGiftCard} {
		p := NewPaymentState()
		p.EnterSingle(method)
		require.Equal(t, pricing.Money(16500), p.TotalPaid(16500), string(method))
	}
}

func TestCheckSufficient(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.CashAmount = "100"
	require.ErrorIs(t, p.CheckSufficient(16500), ErrInsufficientPayment)

	p.AllowPartial = true
	require.NoError(t, p.CheckSufficient(16500))

	p.CashAmount = "0"
	require.ErrorIs(t, p.CheckSufficient(16500), ErrInsufficientPayment)
}

func TestUsesGiftCard(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	require.False(t, p.UsesGiftCard())

	p.EnterSingle(MethodGiftCard)
	require.True(t, p.UsesGiftCard())

	p = NewPaymentState()
	p.EnterSplit()
	p.SetAllocation(0, Allocation{Method: MethodGiftCard})
	require.False(t, p.UsesGiftCard(), "zero-amount gift card entry does not count")

	p.SetAllocation(0, Allocation{Method: MethodGiftCard, Amount: "25"})
	require.True(t, p.UsesGiftCard())
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want pricing.Money
	}{
		{"", 0},
		{"  ", 0},
		{"abc", 0},
		{"-5", 0},
		{"100", 10000},
		{"99.99", 9999},
		{" 12.5 ", 1250},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseAmount(tc.in), "input %q", tc.in)
	}
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	got, err := ParseMethod(" Gift_Card ")
	require.NoError(t, err)
	require.Equal(t, MethodGiftCard, got)

	_, err = ParseMethod("bitcoin")
	require.Error(t, err)
}

func TestResetRestoresSingleCash(t *testing.T) {
	t.Parallel()

	p := NewPaymentState()
	p.EnterSplit()
	p.AddAllocation()
	p.AllowPartial = true

	p.Reset()

	require.Equal(t, ModeSingle, p.Mode)
	require.Equal(t, MethodCash, p.Method)
	require.False(t, p.AllowPartial)
	require.Empty(t, p.Allocations())
}
