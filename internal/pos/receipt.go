package pos

import (
	"time"

	"github.com/noah-isme/backend-pos/internal/pricing"
)

// CustomerRef identifies the customer a sale is attached to.
type CustomerRef struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ReceiptLine is one printed row, decoupled from the live cart line it came
// from.
type ReceiptLine struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Size      string        `json:"size,omitempty"`
	Color     string        `json:"color,omitempty"`
	Qty       int           `json:"qty"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Discount  pricing.Money `json:"discount"`
	LineTotal pricing.Money `json:"lineTotal"`
}

// ReceiptPayment is one settled allocation on the receipt.
type ReceiptPayment struct {
	Method Method        `json:"method"`
	Amount pricing.Money `json:"amount"`
	Notes  string        `json:"notes,omitempty"`
}

// Receipt is the immutable snapshot of a completed transaction. It is fully
// self-contained: clearing the cart after submission cannot corrupt it.
type Receipt struct {
	SaleID         string           `json:"saleId"`
	IssuedAt       time.Time        `json:"issuedAt"`
	Customer       *CustomerRef     `json:"customer,omitempty"`
	Lines          []ReceiptLine    `json:"lines"`
	Subtotal       pricing.Money    `json:"subtotal"`
	ItemDiscount   pricing.Money    `json:"itemDiscount"`
	GlobalDiscount pricing.Money    `json:"globalDiscount"`
	Tax            pricing.Money    `json:"tax"`
	Total          pricing.Money    `json:"total"`
	PaymentMethod  Method           `json:"paymentMethod"`
	Payments       []ReceiptPayment `json:"payments"`
	CashAmount     *pricing.Money   `json:"cashAmount,omitempty"`
	ChangeDue      *pricing.Money   `json:"changeDue,omitempty"`
	IsPaid         bool             `json:"isPaid"`
	IsDue          bool             `json:"isDue"`
	GiftCardUsed   bool             `json:"giftCardUsed"`
}

// ReceiptInput carries everything the composer needs; it deliberately takes
// copies rather than references into the session.
type ReceiptInput struct {
	SaleID       string
	IssuedAt     time.Time
	Customer     *CustomerRef
	Items        []LineItem
	Summary      pricing.Summary
	Method       Method
	Payments     []ReceiptPayment
	CashAmount   pricing.Money
	MarkAsDue    bool
	GiftCardUsed bool
}

// ComposeReceipt builds the snapshot. Cash amount and change due are only set
// for cash sales that are not marked due; changeDue = cashAmount − total.
func ComposeReceipt(in ReceiptInput) Receipt {
	lines := make([]ReceiptLine, 0, len(in.Items))
	for _, item := range in.Items {
		amounts := pricing.ComputeLine(pricing.Line{Qty: item.Qty, UnitPrice: item.UnitPrice, Discount: item.Discount})
		lines = append(lines, ReceiptLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size,
			Color:     item.Color,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  amounts.Discount,
			LineTotal: amounts.Net,
		})
	}

	receipt := Receipt{
		SaleID:         in.SaleID,
		IssuedAt:       in.IssuedAt,
		Lines:          lines,
		Subtotal:       in.Summary.Subtotal,
		ItemDiscount:   in.Summary.ItemDiscount,
		GlobalDiscount: in.Summary.GlobalDiscount,
		Tax:            in.Summary.Tax,
		Total:          in.Summary.Total,
		PaymentMethod:  in.Method,
		Payments:       append([]ReceiptPayment(nil), in.Payments...),
		IsPaid:         !in.MarkAsDue,
		IsDue:          in.MarkAsDue,
		GiftCardUsed:   in.GiftCardUsed,
	}
	if in.Customer != nil {
		copied := *in.Customer
		receipt.Customer = &copied
	}
	if in.Method == MethodCash && !in.MarkAsDue {
		cash := in.CashAmount
		change := cash - in.Summary.Total
		receipt.CashAmount = &cash
		receipt.ChangeDue = &change
	}
	return receipt
}
