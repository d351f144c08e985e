package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/customer"
	"github.com/noah-isme/backend-pos/internal/sales"
)

func newTestRouter(t *testing.T, salesClient sales.Client, dir customer.Client) (*chi.Mux, *Store) {
	t.Helper()
	store := NewStore(time.Hour)
	handler := &Handler{
		Store:    store,
		Validate: validator.New(),
	}
	if salesClient != nil {
		handler.Submitter = &Submitter{Sales: salesClient, Logger: zerolog.Nop()}
	}
	if dir != nil {
		handler.Customers = &customer.Service{Directory: dir}
	}

	r := chi.NewRouter()
	r.Post("/sessions", handler.CreateSession)
	r.Route("/sessions/{id}", func(s chi.Router) {
		s.Get("/", handler.GetSession)
		s.Delete("/", handler.DeleteSession)
		s.Post("/items", handler.AddItem)
		s.Patch("/items/{lineId}", handler.ChangeQuantity)
		s.Delete("/items/{lineId}", handler.RemoveItem)
		s.Put("/discount", handler.SetGlobalDiscount)
		s.Put("/payment", handler.SetPayment)
		s.Put("/customer", handler.AttachCustomer)
		s.Post("/complete", handler.Complete)
		s.Get("/receipt", handler.GetReceipt)
	})
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t, nil, nil)

	rr := doJSON(t, router, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusCreated, rr.Code)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	require.Equal(t, 1, store.Len())

	base := "/sessions/" + created.Data.ID
	rr = doJSON(t, router, http.MethodPost, base+"/items",
		`{"productId":"p-1","name":"Shirt","unitPrice":5000,"size":"M"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var added struct {
		LineID string `json:"lineId"`
		Data   struct {
			Totals struct {
				Total int64 `json:"total"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	require.NotEmpty(t, added.LineID)
	require.Equal(t, int64(5000), added.Data.Totals.Total)

	rr = doJSON(t, router, http.MethodPatch, base+"/items/"+added.LineID, `{"delta":2}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPut, base+"/discount", `{"kind":"percent","value":10}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var view struct {
		Data struct {
			Totals struct {
				Subtotal       int64 `json:"subtotal"`
				GlobalDiscount int64 `json:"globalDiscount"`
				Total          int64 `json:"total"`
			} `json:"totals"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Equal(t, int64(15000), view.Data.Totals.Subtotal)
	require.Equal(t, int64(1500), view.Data.Totals.GlobalDiscount)
	require.Equal(t, int64(13500), view.Data.Totals.Total)

	rr = doJSON(t, router, http.MethodDelete, base, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Zero(t, store.Len())
}

func TestUnknownSessionReturnsNotFound(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, nil, nil)
	rr := doJSON(t, router, http.MethodGet, "/sessions/0d9f1b6e-23a1-4f58-9d2c-0a8e6f3b1c11", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "NOT_FOUND")

	rr = doJSON(t, router, http.MethodGet, "/sessions/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAddItemValidatesPayload(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t, nil, nil)
	sess := store.Create()

	rr := doJSON(t, router, http.MethodPost, "/sessions/"+sess.ID.String()+"/items", `{"name":"Shirt"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCompleteEmptyCartOverHTTP(t *testing.T) {
	t.Parallel()

	client := &stubSales{sale: sales.Sale{ID: "s-1"}}
	router, store := newTestRouter(t, client, nil)
	sess := store.Create()

	rr := doJSON(t, router, http.MethodPost, "/sessions/"+sess.ID.String()+"/complete", "")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "EMPTY_CART")
	require.Zero(t, client.callCount())
}

func TestCompleteSurfacesRemoteRejection(t *testing.T) {
	t.Parallel()

	client := &stubSales{err: &sales.RemoteError{Message: "register closed", StatusCode: 422}}
	router, store := newTestRouter(t, client, nil)
	sess := store.Create()
	sess.Cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}, "", "")

	rr := doJSON(t, router, http.MethodPost, "/sessions/"+sess.ID.String()+"/complete", "{}")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "register closed")
}

func TestCompleteThenFetchReceipt(t *testing.T) {
	t.Parallel()

	client := &stubSales{sale: sales.Sale{ID: "s-55"}}
	router, store := newTestRouter(t, client, nil)
	sess := store.Create()
	sess.Cart.AddItem(Product{ID: "p-1", Name: "Shirt", UnitPrice: 5000}, "", "")

	base := "/sessions/" + sess.ID.String()
	rr := doJSON(t, router, http.MethodGet, base+"/receipt", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, base+"/complete", "{}")
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodGet, base+"/receipt", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"saleId":"s-55"`)
}

type conflictDirectory struct{}

func (conflictDirectory) FindByPhone(context.Context, string) (customer.Customer, error) {
	return customer.Customer{}, customer.ErrNotFound
}

func (conflictDirectory) Create(context.Context, string, string) (customer.Customer, error) {
	return customer.Customer{}, customer.ErrDuplicatePhone
}

func TestAttachCustomerDuplicatePhone(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t, nil, conflictDirectory{})
	sess := store.Create()

	rr := doJSON(t, router, http.MethodPut, "/sessions/"+sess.ID.String()+"/customer",
		`{"name":"Budi","phone":"0812"}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "DUPLICATE_PHONE")
}

func TestSetPaymentSwitchesModes(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t, nil, nil)
	sess := store.Create()
	base := "/sessions/" + sess.ID.String()

	rr := doJSON(t, router, http.MethodPut, base+"/payment", `{"mode":"split"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, ModeSplit, sess.Payment.Mode)
	require.Len(t, sess.Payment.Allocations(), 1)

	rr = doJSON(t, router, http.MethodPut, base+"/payment", `{"mode":"single","method":"card"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, MethodCard, sess.Payment.Method)

	rr = doJSON(t, router, http.MethodPut, base+"/payment", `{"mode":"single","method":"bitcoin"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
