package pos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/sales"
)

// SplitMethodLabel is the payment_method value reported for split sales; the
// per-method breakdown travels in payment_data.
const SplitMethodLabel = "split"

// Submitter assembles the outbound sale from a session's cart and payment
// state, calls the sale-creation interface and, on success, hands off to the
// receipt composer and resets the session.
type Submitter struct {
	Sales   sales.Client
	Events  *events.Bus
	Locker  *lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// SubmitOptions carries the completion inputs chosen at the terminal.
type SubmitOptions struct {
	Customer  *CustomerRef
	MarkAsDue bool
}

// SubmitResult is returned to the caller after a successful submission.
type SubmitResult struct {
	SaleID       string
	Receipt      Receipt
	GiftCardUsed bool
}

// Submit completes the sale for one session.
//
// Failure semantics: every error leaves the cart and payment state untouched
// so the cashier can correct and retry. A second call while one is pending is
// rejected; the call itself is not idempotent once it reaches the remote
// interface.
func (s *Submitter) Submit(ctx context.Context, sess *Session, opts SubmitOptions) (SubmitResult, error) {
	if s == nil || s.Sales == nil {
		return SubmitResult{}, fmt.Errorf("pos: submitter not configured")
	}
	if !sess.BeginSubmit() {
		return SubmitResult{}, ErrSubmitInFlight
	}
	defer sess.EndSubmit()

	if s.Locker != nil {
		var result SubmitResult
		err := s.Locker.WithLock(ctx, "pos:submit:"+sess.ID.String(), s.lockTTL(), func(ctx context.Context) error {
			var err error
			result, err = s.submitLocked(ctx, sess, opts)
			return err
		})
		return result, err
	}
	return s.submitLocked(ctx, sess, opts)
}

func (s *Submitter) submitLocked(ctx context.Context, sess *Session, opts SubmitOptions) (SubmitResult, error) {
	sess.Lock()
	items := sess.Cart.Lines()
	summary := sess.Cart.Totals()
	payment := sess.Payment.Snapshot()
	if opts.Customer == nil {
		opts.Customer = sess.Customer
	}
	sess.Unlock()

	if len(items) == 0 {
		return SubmitResult{}, ErrEmptyCart
	}
	if !opts.MarkAsDue {
		if err := payment.CheckSufficient(summary.Total); err != nil {
			return SubmitResult{}, err
		}
	}

	method, wirePayments := buildPayments(&payment, summary.Total, opts.MarkAsDue)
	giftCard := !opts.MarkAsDue && payment.UsesGiftCard()
	req := buildRequest(items, summary, method, wirePayments, opts.Customer)

	sale, err := s.Sales.CreateSale(ctx, req)
	if err != nil {
		s.Logger.Error().Err(err).Str("session_id", sess.ID.String()).Msg("sale_submit_failed")
		obs.ObserveSaleSubmitted("error", string(method), 0)
		s.emit(ctx, events.TopicSaleFailed, sess, map[string]any{
			"sessionId": sess.ID.String(),
			"error":     err.Error(),
		})
		return SubmitResult{}, err
	}

	receipt := ComposeReceipt(ReceiptInput{
		SaleID:       sale.ID,
		IssuedAt:     s.now(),
		Customer:     opts.Customer,
		Items:        items,
		Summary:      summary,
		Method:       method,
		Payments:     toReceiptPayments(wirePayments),
		CashAmount:   cashTendered(&payment, summary.Total),
		MarkAsDue:    opts.MarkAsDue,
		GiftCardUsed: giftCard,
	})

	sess.Lock()
	sess.SetReceipt(receipt)
	sess.Cart.Clear()
	sess.Payment.Reset()
	sess.Customer = nil
	sess.Unlock()

	obs.ObserveSaleSubmitted("ok", string(method), summary.Total)
	if giftCard && obs.GiftCardAllocationsTotal != nil {
		obs.GiftCardAllocationsTotal.Inc()
	}
	topic := events.TopicSaleCompleted
	if opts.MarkAsDue {
		topic = events.TopicSaleDueRecorded
	}
	s.emit(ctx, topic, sess, receipt)
	s.Logger.Info().
		Str("session_id", sess.ID.String()).
		Str("sale_id", sale.ID).
		Str("payment_method", string(method)).
		Int64("total", summary.Total).
		Bool("due", opts.MarkAsDue).
		Bool("gift_card", giftCard).
		Msg("sale_submitted")

	return SubmitResult{SaleID: sale.ID, Receipt: receipt, GiftCardUsed: giftCard}, nil
}

func (s *Submitter) emit(ctx context.Context, topic string, sess *Session, payload any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, sess.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Msg("event_emit_failed")
	}
}

func (s *Submitter) lockTTL() time.Duration {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return 30 * time.Second
}

func (s *Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// buildPayments normalises the payment state into the wire allocation list.
// Due sales carry no allocations and the credit method; split sales keep one
// entry per allocation with a positive amount; single cash defaults blank
// tender to the total; the remaining single methods pay the full total.
func buildPayments(p *PaymentState, total pricing.Money, markAsDue bool) (Method, []sales.Payment) {
	if markAsDue {
		return MethodCredit, []sales.Payment{}
	}
	if p.Mode == ModeSplit {
		out := make([]sales.Payment, 0, len(p.allocations))
		for _, a := range p.allocations {
			amount := ParseAmount(a.Amount)
			if amount <= 0 {
				continue
			}
			out = append(out, sales.Payment{Method: string(a.Method), Amount: amount, Notes: a.Notes})
		}
		return SplitMethodLabel, out
	}
	switch p.Method {
	case MethodCash:
		amount := ParseAmount(p.CashAmount)
		if amount <= 0 {
			amount = total
		}
		return MethodCash, []sales.Payment{{Method: string(MethodCash), Amount: amount}}
	case MethodCard, MethodMobile, MethodGiftCard:
		return p.Method, []sales.Payment{{Method: string(p.Method), Amount: total}}
	default:
		return p.Method, []sales.Payment{{Method: string(p.Method), Amount: total}}
	}
}

func buildRequest(items []LineItem, summary pricing.Summary, method Method, payments []sales.Payment, customer *CustomerRef) sales.CreateSaleRequest {
	wireItems := make([]sales.SaleItem, 0, len(items))
	for _, item := range items {
		amounts := pricing.ComputeLine(pricing.Line{Qty: item.Qty, UnitPrice: item.UnitPrice, Discount: item.Discount})
		wireItems = append(wireItems, sales.SaleItem{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  amounts.Discount,
			Total:     amounts.Net,
		})
	}
	req := sales.CreateSaleRequest{
		Subtotal:      summary.Subtotal,
		Tax:           summary.Tax,
		Discount:      summary.ItemDiscount + summary.GlobalDiscount,
		Total:         summary.Total,
		PaymentMethod: string(method),
		PaymentData:   payments,
		Items:         wireItems,
	}
	if customer != nil {
		req.Customer = strings.TrimSpace(customer.Name)
		req.CustomerPhone = strings.TrimSpace(customer.Phone)
	}
	return req
}

func toReceiptPayments(payments []sales.Payment) []ReceiptPayment {
	out := make([]ReceiptPayment, 0, len(payments))
	for _, p := range payments {
		out = append(out, ReceiptPayment{Method: Method(p.Method), Amount: p.Amount, Notes: p.Notes})
	}
	return out
}

func cashTendered(p *PaymentState, total pricing.Money) pricing.Money {
	if p.Mode != ModeSingle || p.Method != MethodCash {
		return 0
	}
	amount := ParseAmount(p.CashAmount)
	if amount <= 0 {
		return total
	}
	return amount
}
