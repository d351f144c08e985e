package customer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

// Customer is the remote customer record attached to a sale.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

var (
	// ErrNotFound indicates no customer matches the given phone number.
	ErrNotFound = errors.New("customer: not found")
	// ErrDuplicatePhone indicates the phone number is already registered to
	// another customer.
	ErrDuplicatePhone = errors.New("customer: phone already registered")
)

// Client defines the behaviour required from the customer directory.
type Client interface {
	FindByPhone(ctx context.Context, phone string) (Customer, error)
	Create(ctx context.Context, name, phone string) (Customer, error)
}

// HTTPClient talks to the customer directory API over HTTP.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	HTTP    *resilience.HTTPClient
}

// FindByPhone looks up a customer by phone number. A 404 maps to ErrNotFound.
func (c *HTTPClient) FindByPhone(ctx context.Context, phone string) (Customer, error) {
	if c == nil || c.HTTP == nil {
		return Customer{}, errors.New("customer: client not configured")
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/customers?phone=" + url.QueryEscape(phone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Customer{}, fmt.Errorf("customer: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return Customer{}, fmt.Errorf("customer: lookup: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Customer{}, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Customer{}, fmt.Errorf("customer: lookup status %d", resp.StatusCode)
	}
	return decodeCustomer(resp.Body)
}

// Create registers a new customer. A 409 maps to ErrDuplicatePhone.
func (c *HTTPClient) Create(ctx context.Context, name, phone string) (Customer, error) {
	if c == nil || c.HTTP == nil {
		return Customer{}, errors.New("customer: client not configured")
	}
	body, err := json.Marshal(map[string]string{"name": name, "phone": phone})
	if err != nil {
		return Customer{}, fmt.Errorf("customer: encode request: %w", err)
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/customers"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Customer{}, fmt.Errorf("customer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return Customer{}, fmt.Errorf("customer: create: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return Customer{}, ErrDuplicatePhone
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Customer{}, fmt.Errorf("customer: create status %d", resp.StatusCode)
	}
	return decodeCustomer(resp.Body)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

func decodeCustomer(r io.Reader) (Customer, error) {
	payload, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return Customer{}, fmt.Errorf("customer: read response: %w", err)
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && len(wrapped.Data) > 0 {
		payload = wrapped.Data
	}
	var cust Customer
	if err := json.Unmarshal(payload, &cust); err != nil {
		return Customer{}, fmt.Errorf("customer: decode response: %w", err)
	}
	if strings.TrimSpace(cust.ID) == "" {
		return Customer{}, errors.New("customer: response missing identifier")
	}
	return cust, nil
}

// Service resolves the customer to attach to a sale, creating one when the
// phone number is not registered yet.
type Service struct {
	Directory Client
}

// Resolve returns the existing customer for the phone number, or registers a
// new one. ErrDuplicatePhone is surfaced unchanged when the directory reports
// a conflicting record during creation.
func (s *Service) Resolve(ctx context.Context, name, phone string) (Customer, error) {
	if s == nil || s.Directory == nil {
		return Customer{}, errors.New("customer: service not configured")
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Customer{}, errors.New("customer: phone is required")
	}

	existing, err := s.Directory.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Customer{}, err
	}
	return s.Directory.Create(ctx, strings.TrimSpace(name), phone)
}
