package pos

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// Method identifies how a sale (or part of one) is paid.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodMobile   Method = "mobile"
	MethodGiftCard Method = "gift_card"
	// MethodCredit records an unpaid (due) sale; it is never chosen directly
	// by the cashier.
	MethodCredit Method = "credit"
)

// ParseMethod normalises a wire value into a Method.
func ParseMethod(value string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(value))) {
	case MethodCash:
		return MethodCash, nil
	case MethodCard:
		return MethodCard, nil
	case MethodMobile:
		return MethodMobile, nil
	case MethodGiftCard:
		return MethodGiftCard, nil
	case MethodCredit:
		return MethodCredit, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", value)
	}
}

// Mode selects between a single implicit allocation and an explicit split.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeSplit  Mode = "split"
)

// Allocation is one (method, amount) entry of a split payment. Amount is the
// raw tender input in major units; blank or unparsable text contributes zero
// rather than erroring.
type Allocation struct {
	Method Method
	Amount string
	Notes  string
}

// PaymentState owns the chosen payment method and, in split mode, the
// allocation list. Like Cart it is serialised by the owning Session.
type PaymentState struct {
	Mode         Mode
	Method       Method
	CashAmount   string
	AllowPartial bool
	allocations  []Allocation
}

// NewPaymentState returns the default single-cash state.
func NewPaymentState() *PaymentState {
	return &PaymentState{Mode: ModeSingle, Method: MethodCash}
}

// Reset restores the default state after a completed sale.
func (p *PaymentState) Reset() {
	*p = PaymentState{Mode: ModeSingle, Method: MethodCash}
}

// EnterSplit switches to split mode, seeding one empty cash entry when the
// list is empty so the list is never empty while split is active.
func (p *PaymentState) EnterSplit() {
	p.Mode = ModeSplit
	if len(p.allocations) == 0 {
		p.allocations = []Allocation{{Method: MethodCash}}
	}
}

// EnterSingle switches back to single mode with the given method.
func (p *PaymentState) EnterSingle(method Method) {
	p.Mode = ModeSingle
	p.Method = method
}

// AddAllocation appends a new empty cash entry in split mode.
func (p *PaymentState) AddAllocation() {
	if p.Mode != ModeSplit {
		return
	}
	p.allocations = append(p.allocations, Allocation{Method: MethodCash})
}

// SetAllocation replaces entry i. Out-of-range indexes are ignored.
func (p *PaymentState) SetAllocation(i int, a Allocation) {
	if i < 0 || i >= len(p.allocations) {
		return
	}
	p.allocations[i] = a
}

// RemoveAllocation drops entry i. Removing the last remaining entry is a
// no-op: the list may not become empty while split mode is active. It reports
// whether an entry was removed.
func (p *PaymentState) RemoveAllocation(i int) bool {
	if len(p.allocations) <= 1 {
		return false
	}
	if i < 0 || i >= len(p.allocations) {
		return false
	}
	p.allocations = append(p.allocations[:i], p.allocations[i+1:]...)
	return true
}

// Allocations returns a copy of the split entries.
func (p *PaymentState) Allocations() []Allocation {
	out := make([]Allocation, len(p.allocations))
	copy(out, p.allocations)
	return out
}

// Snapshot returns a detached copy of the state. The copy shares nothing with
// the receiver, so it stays safe to read after the session lock is released
// even while allocation edits keep landing on the live state.
func (p *PaymentState) Snapshot() PaymentState {
	out := *p
	out.allocations = p.Allocations()
	return out
}

// TotalPaid derives the amount tendered against the given cart total. In
// single mode a non-cash method implies full payment; blank cash tender
// defaults to the total.
func (p *PaymentState) TotalPaid(total pricing.Money) pricing.Money {
	switch p.Mode {
	case ModeSplit:
		var paid pricing.Money
		for _, a := range p.allocations {
			paid += ParseAmount(a.Amount)
		}
		return paid
	default:
		switch p.Method {
		case MethodCash:
			if strings.TrimSpace(p.CashAmount) == "" {
				return total
			}
			return ParseAmount(p.CashAmount)
		case MethodCard, MethodMobile, MethodGiftCard:
			return total
		default:
			return 0
		}
	}
}

// IsFullPayment reports whether the tendered amount covers the total.
func (p *PaymentState) IsFullPayment(total pricing.Money) bool {
	return p.TotalPaid(total) >= total
}

// UsesGiftCard reports whether any part of the payment rides on a gift card.
// Gift-card tender is excluded from revenue accounting downstream, so the
// caller must surface this to the cashier instead of swallowing it.
func (p *PaymentState) UsesGiftCard() bool {
	if p.Mode == ModeSplit {
		for _, a := range p.allocations {
			if a.Method == MethodGiftCard && ParseAmount(a.Amount) > 0 {
				return true
			}
		}
		return false
	}
	return p.Method == MethodGiftCard
}

// CheckSufficient is the completion gate. With AllowPartial unset the sale
// requires full payment; with it set any positive tender passes. Due sales
// bypass the gate entirely at submission time.
func (p *PaymentState) CheckSufficient(total pricing.Money) error {
	paid := p.TotalPaid(total)
	if p.AllowPartial {
		if paid <= 0 {
			return ErrInsufficientPayment
		}
		return nil
	}
	if paid < total {
		return ErrInsufficientPayment
	}
	return nil
}

// ParseAmount converts free-text tender input in major units to minor units.
// Blank or unparsable values contribute zero; they are not errors.
func ParseAmount(value string) pricing.Money {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return pricing.Money(math.Round(f * 100))
}
