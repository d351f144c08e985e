package customer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &HTTPClient{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		HTTP:    &resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
	}
}

func TestFindByPhoneDecodesEnvelope(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "0812000111", r.URL.Query().Get("phone"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"c-1","name":"Siti","phone":"0812000111"}}`))
	})

	got, err := client.FindByPhone(context.Background(), "0812000111")
	require.NoError(t, err)
	require.Equal(t, "c-1", got.ID)
	require.Equal(t, "Siti", got.Name)
}

func TestFindByPhoneNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FindByPhone(context.Background(), "0812999999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicatePhone(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	_, err := client.Create(context.Background(), "Budi", "0812000111")
	require.ErrorIs(t, err, ErrDuplicatePhone)
}

type stubDirectory struct {
	findErr error
	found   Customer
	created Customer
	calls   []string
}

func (s *stubDirectory) FindByPhone(_ context.Context, phone string) (Customer, error) {
	s.calls = append(s.calls, "find:"+phone)
	if s.findErr != nil {
		return Customer{}, s.findErr
	}
	return s.found, nil
}

func (s *stubDirectory) Create(_ context.Context, name, phone string) (Customer, error) {
	s.calls = append(s.calls, "create:"+phone)
	return s.created, nil
}

func TestResolveReturnsExisting(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{found: Customer{ID: "c-7", Name: "Siti", Phone: "0812"}}
	svc := &Service{Directory: dir}

	got, err := svc.Resolve(context.Background(), "Siti", "0812")
	require.NoError(t, err)
	require.Equal(t, "c-7", got.ID)
	require.Equal(t, []string{"find:0812"}, dir.calls)
}

func TestResolveCreatesWhenMissing(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{findErr: ErrNotFound, created: Customer{ID: "c-8", Name: "Budi", Phone: "0813"}}
	svc := &Service{Directory: dir}

	got, err := svc.Resolve(context.Background(), "Budi", "0813")
	require.NoError(t, err)
	require.Equal(t, "c-8", got.ID)
	require.Equal(t, []string{"find:0813", "create:0813"}, dir.calls)
}

func TestResolvePropagatesLookupFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("directory down")
	svc := &Service{Directory: &stubDirectory{findErr: boom}}

	_, err := svc.Resolve(context.Background(), "Budi", "0813")
	require.ErrorIs(t, err, boom)
}

func TestResolveRequiresPhone(t *testing.T) {
	t.Parallel()

	svc := &Service{Directory: &stubDirectory{}}
	_, err := svc.Resolve(context.Background(), "Budi", "  ")
	require.Error(t, err)
}
