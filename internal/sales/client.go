package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

// CreateSaleRequest is the outbound sale-creation payload. It is built once
// per submission attempt and never mutated afterwards.
type CreateSaleRequest struct {
	Customer      string       `json:"customer"`
	CustomerPhone string       `json:"customer_phone"`
	Subtotal      int64        `json:"subtotal"`
	Tax           int64        `json:"tax"`
	Discount      int64        `json:"discount"`
	Total         int64        `json:"total"`
	PaymentMethod string       `json:"payment_method"`
	PaymentData   []Payment    `json:"payment_data"`
	Items         []SaleItem   `json:"items"`
}

// Payment is one settled allocation on the wire.
type Payment struct {
	Method string `json:"method"`
	Amount int64  `json:"amount"`
	Notes  string `json:"notes,omitempty"`
}

// SaleItem is one sold line on the wire.
type SaleItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
}

// Sale is the remote acknowledgement of a created sale.
type Sale struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Client defines the behaviour required from the sale-creation interface.
type Client interface {
	CreateSale(ctx context.Context, req CreateSaleRequest) (Sale, error)
}

// RemoteError wraps any failure from the sale-creation call. Message always
// carries something human-readable; callers surface it verbatim.
type RemoteError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const fallbackMessage = "sale could not be submitted"

func newRemoteError(message string, status int, err error) *RemoteError {
	if strings.TrimSpace(message) == "" {
		message = fallbackMessage
	}
	return &RemoteError{Message: message, StatusCode: status, Err: err}
}

// HTTPClient talks to the sale-creation API over HTTP.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	HTTP    *resilience.HTTPClient
}

// CreateSale posts the payload and decodes the assigned sale identifier. No
// retry beyond the transport policy is performed; failures propagate to the
// caller with the remote message when one is present.
func (c *HTTPClient) CreateSale(ctx context.Context, req CreateSaleRequest) (Sale, error) {
	if c == nil || c.HTTP == nil {
		return Sale{}, errors.New("sales: client not configured")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: encode request: %w", err)
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/sales"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Sale{}, fmt.Errorf("sales: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(ctx, httpReq)
	if err != nil {
		return Sale{}, newRemoteError("", 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Sale{}, newRemoteError("", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Sale{}, newRemoteError(extractMessage(payload), resp.StatusCode, fmt.Errorf("sales: remote status %d", resp.StatusCode))
	}

	var sale Sale
	if err := json.Unmarshal(payload, &saleEnvelope{Sale: &sale}); err != nil {
		if err := json.Unmarshal(payload, &sale); err != nil {
			return Sale{}, newRemoteError("", resp.StatusCode, fmt.Errorf("sales: decode response: %w", err))
		}
	}
	if strings.TrimSpace(sale.ID) == "" {
		return Sale{}, newRemoteError("sale created without an identifier", resp.StatusCode, nil)
	}
	return sale, nil
}

type saleEnvelope struct {
	Sale *Sale `json:"data"`
}

func (e *saleEnvelope) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if len(wrapped.Data) == 0 {
		return errors.New("no data field")
	}
	return json.Unmarshal(wrapped.Data, e.Sale)
}

func extractMessage(payload []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	if strings.TrimSpace(envelope.Error.Message) != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(envelope.Message)
}
