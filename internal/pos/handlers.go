package pos

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-pos/internal/common"
	"github.com/noah-isme/backend-pos/internal/customer"
	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/sales"
)

// Handler wires terminal sessions to HTTP.
type Handler struct {
	Store     *Store
	Submitter *Submitter
	Customers *customer.Service
	Validate  *validator.Validate
}

// CreateSession opens a fresh terminal session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, common.NewAppError("INTERNAL", "session store not configured", http.StatusInternalServerError, nil))
		return
	}
	sess := h.Store.Create()
	sess.Lock()
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusCreated, view)
}

// GetSession returns the full session state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// DeleteSession discards a session and everything in it.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, common.BadRequest("invalid session id", err))
		return
	}
	h.Store.Delete(id)
	common.JSON(w, http.StatusNoContent, nil)
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Name      string `json:"name" validate:"required"`
	UnitPrice int64  `json:"unitPrice" validate:"gte=0"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	ImageURL  string `json:"imageUrl"`
}

// AddItem rings up one unit of a product. A line with the same product, size
// and color absorbs it; otherwise a new line is appended.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload addItemRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid item payload", err))
		return
	}

	sess.Lock()
	line := sess.Cart.AddItem(Product{
		ID:        payload.ProductID,
		Name:      payload.Name,
		UnitPrice: pricing.Money(payload.UnitPrice),
		ImageURL:  payload.ImageURL,
	}, payload.Size, payload.Color)
	view := sessionView(sess)
	sess.Unlock()

	common.JSON(w, http.StatusOK, map[string]any{
		"data":   view,
		"lineId": line.ID.String(),
	})
}

type changeQuantityRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// ChangeQuantity adjusts a line quantity by a signed delta, never below one.
func (h *Handler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	sess, lineID, ok := h.sessionLine(w, r)
	if !ok {
		return
	}
	var payload changeQuantityRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid quantity payload", err))
		return
	}

	sess.Lock()
	sess.Cart.ChangeQuantity(lineID, payload.Delta)
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// RemoveItem deletes a line outright, whatever its quantity.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, lineID, ok := h.sessionLine(w, r)
	if !ok {
		return
	}
	sess.Lock()
	sess.Cart.RemoveItem(lineID)
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// ClearCart empties the cart and drops the cart-wide discount.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	sess.Cart.Clear()
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

type discountRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=percent fixed"`
	Value int64  `json:"value" validate:"gte=0"`
}

func (p discountRequest) discount() pricing.Discount {
	return pricing.Discount{Kind: pricing.DiscountKind(p.Kind), Value: pricing.Money(p.Value)}
}

// SetItemDiscount attaches a discount to one line.
func (h *Handler) SetItemDiscount(w http.ResponseWriter, r *http.Request) {
	sess, lineID, ok := h.sessionLine(w, r)
	if !ok {
		return
	}
	var payload discountRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid discount payload", err))
		return
	}

	sess.Lock()
	found := sess.Cart.SetItemDiscount(lineID, payload.discount())
	view := sessionView(sess)
	sess.Unlock()
	if !found {
		common.JSONError(w, common.NotFound("line item not found", nil))
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// ClearItemDiscount removes the discount from one line.
func (h *Handler) ClearItemDiscount(w http.ResponseWriter, r *http.Request) {
	sess, lineID, ok := h.sessionLine(w, r)
	if !ok {
		return
	}
	sess.Lock()
	found := sess.Cart.ClearItemDiscount(lineID)
	view := sessionView(sess)
	sess.Unlock()
	if !found {
		common.JSONError(w, common.NotFound("line item not found", nil))
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

// SetGlobalDiscount applies the single cart-wide discount.
func (h *Handler) SetGlobalDiscount(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload discountRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid discount payload", err))
		return
	}

	sess.Lock()
	d := payload.discount()
	sess.Cart.SetGlobalDiscount(&d)
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// ClearGlobalDiscount removes the cart-wide discount.
func (h *Handler) ClearGlobalDiscount(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	sess.Cart.SetGlobalDiscount(nil)
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

type paymentRequest struct {
	Mode         string `json:"mode" validate:"required,oneof=single split"`
	Method       string `json:"method"`
	CashAmount   string `json:"cashAmount"`
	AllowPartial bool   `json:"allowPartial"`
}

// SetPayment switches the payment mode and, in single mode, the method and
// cash tender.
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload paymentRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid payment payload", err))
		return
	}

	sess.Lock()
	defer sess.Unlock()
	switch Mode(payload.Mode) {
	case ModeSplit:
		sess.Payment.EnterSplit()
	case ModeSingle:
		method := MethodCash
		if payload.Method != "" {
			parsed, err := ParseMethod(payload.Method)
			if err != nil {
				common.JSONError(w, common.BadRequest(err.Error(), err))
				return
			}
			method = parsed
		}
		sess.Payment.EnterSingle(method)
		sess.Payment.CashAmount = payload.CashAmount
	}
	sess.Payment.AllowPartial = payload.AllowPartial
	common.JSONData(w, http.StatusOK, sessionView(sess))
}

type allocationRequest struct {
	Method string `json:"method" validate:"required"`
	Amount string `json:"amount"`
	Notes  string `json:"notes"`
}

// AddAllocation appends an empty split entry.
func (h *Handler) AddAllocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	sess.Payment.AddAllocation()
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// SetAllocation replaces one split entry by position.
func (h *Handler) SetAllocation(w http.ResponseWriter, r *http.Request) {
	sess, index, ok := h.sessionIndex(w, r)
	if !ok {
		return
	}
	var payload allocationRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid allocation payload", err))
		return
	}
	method, err := ParseMethod(payload.Method)
	if err != nil {
		common.JSONError(w, common.BadRequest(err.Error(), err))
		return
	}

	sess.Lock()
	sess.Payment.SetAllocation(index, Allocation{Method: method, Amount: payload.Amount, Notes: payload.Notes})
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// RemoveAllocation drops one split entry. The last remaining entry stays put.
func (h *Handler) RemoveAllocation(w http.ResponseWriter, r *http.Request) {
	sess, index, ok := h.sessionIndex(w, r)
	if !ok {
		return
	}
	sess.Lock()
	sess.Payment.RemoveAllocation(index)
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

type attachCustomerRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// AttachCustomer resolves a customer by phone, registering one when missing,
// and pins the result to the session.
func (h *Handler) AttachCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Customers == nil {
		common.JSONError(w, common.NewAppError("INTERNAL", "customer directory not configured", http.StatusInternalServerError, nil))
		return
	}
	var payload attachCustomerRequest
	if err := h.decode(r, &payload); err != nil {
		common.JSONError(w, common.BadRequest("invalid customer payload", err))
		return
	}

	resolved, err := h.Customers.Resolve(r.Context(), payload.Name, payload.Phone)
	if err != nil {
		h.writeError(w, err)
		return
	}

	sess.Lock()
	sess.Customer = &CustomerRef{ID: resolved.ID, Name: resolved.Name, Phone: resolved.Phone}
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

// DetachCustomer removes the attached customer from the session.
func (h *Handler) DetachCustomer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Lock()
	sess.Customer = nil
	view := sessionView(sess)
	sess.Unlock()
	common.JSONData(w, http.StatusOK, view)
}

type completeRequest struct {
	MarkAsDue bool `json:"markAsDue"`
}

// Complete submits the sale and returns the receipt snapshot.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Submitter == nil {
		common.JSONError(w, common.NewAppError("INTERNAL", "submitter not configured", http.StatusInternalServerError, nil))
		return
	}
	// completion without options is valid, an empty body means a plain sale
	var payload completeRequest
	if err := h.decode(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, common.BadRequest("invalid completion payload", err))
		return
	}

	sess.Lock()
	cust := sess.Customer
	sess.Unlock()

	result, err := h.Submitter.Submit(r.Context(), sess, SubmitOptions{
		Customer:  cust,
		MarkAsDue: payload.MarkAsDue,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{
		"saleId":  result.SaleID,
		"receipt": result.Receipt,
	})
}

// GetReceipt returns the receipt of the last completed sale on this session.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	receipt, found := sess.LastReceipt()
	if !found {
		h.writeError(w, ErrNoReceipt)
		return
	}
	common.JSONData(w, http.StatusOK, receipt)
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := common.DecodeJSON(r, dst); err != nil {
		return err
	}
	if h.Validate != nil {
		return h.Validate.Struct(dst)
	}
	return nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, common.BadRequest("invalid session id", err))
		return nil, false
	}
	sess, err := h.Store.Get(id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) sessionLine(w http.ResponseWriter, r *http.Request) (*Session, uuid.UUID, bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return nil, uuid.Nil, false
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineId"))
	if err != nil {
		common.JSONError(w, common.BadRequest("invalid line id", err))
		return nil, uuid.Nil, false
	}
	return sess, lineID, true
}

func (h *Handler) sessionIndex(w http.ResponseWriter, r *http.Request) (*Session, int, bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return nil, 0, false
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		common.JSONError(w, common.BadRequest("invalid allocation index", err))
		return nil, 0, false
	}
	return sess, index, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var remote *sales.RemoteError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		common.JSONError(w, common.NotFound("session not found", err))
	case errors.Is(err, ErrNoReceipt):
		common.JSONError(w, common.NotFound("no receipt on this session", err))
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, common.UnprocessableEntity("EMPTY_CART", "cart is empty", err))
	case errors.Is(err, ErrInsufficientPayment):
		common.JSONError(w, common.UnprocessableEntity("INSUFFICIENT_PAYMENT", "payment does not cover the total", err))
	case errors.Is(err, ErrSubmitInFlight):
		common.JSONError(w, common.Conflict("SUBMIT_IN_FLIGHT", "sale submission already in progress", err))
	case errors.Is(err, customer.ErrDuplicatePhone):
		common.JSONError(w, common.Conflict("DUPLICATE_PHONE", "phone number already registered", err))
	case errors.As(err, &remote):
		common.JSONError(w, common.BadGateway("SALE_REJECTED", remote.Message, err))
	default:
		common.JSONError(w, err)
	}
}

// sessionView renders the full session state. Callers must hold the session
// lock.
func sessionView(sess *Session) map[string]any {
	lines := sess.Cart.Lines()
	lineViews := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		amounts := pricing.ComputeLine(pricing.Line{
			UnitPrice: line.UnitPrice,
			Qty:       line.Qty,
			Discount:  line.Discount,
		})
		view := map[string]any{
			"id":        line.ID.String(),
			"productId": line.ProductID,
			"name":      line.Name,
			"unitPrice": line.UnitPrice,
			"qty":       line.Qty,
			"size":      line.Size,
			"color":     line.Color,
			"imageUrl":  line.ImageURL,
			"gross":     amounts.Gross,
			"discount":  amounts.Discount,
			"net":       amounts.Net,
		}
		if line.Discount != nil {
			view["lineDiscount"] = map[string]any{"kind": line.Discount.Kind, "value": line.Discount.Value}
		}
		lineViews = append(lineViews, view)
	}

	summary := sess.Cart.Totals()
	allocations := sess.Payment.Allocations()
	allocationViews := make([]map[string]any, 0, len(allocations))
	for _, a := range allocations {
		allocationViews = append(allocationViews, map[string]any{
			"method": a.Method,
			"amount": a.Amount,
			"notes":  a.Notes,
		})
	}

	view := map[string]any{
		"id":    sess.ID.String(),
		"lines": lineViews,
		"totals": map[string]any{
			"subtotal":       summary.Subtotal,
			"itemDiscount":   summary.ItemDiscount,
			"globalDiscount": summary.GlobalDiscount,
			"tax":            summary.Tax,
			"total":          summary.Total,
		},
		"payment": map[string]any{
			"mode":         sess.Payment.Mode,
			"method":       sess.Payment.Method,
			"cashAmount":   sess.Payment.CashAmount,
			"allowPartial": sess.Payment.AllowPartial,
			"allocations":  allocationViews,
			"totalPaid":    sess.Payment.TotalPaid(summary.Total),
			"fullPayment":  sess.Payment.IsFullPayment(summary.Total),
			"giftCardUsed": sess.Payment.UsesGiftCard(),
		},
	}
	if d := sess.Cart.GlobalDiscount(); d != nil {
		view["globalDiscount"] = map[string]any{"kind": d.Kind, "value": d.Value}
	}
	if sess.Customer != nil {
		view["customer"] = sess.Customer
	}
	return view
}
