package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestBreakerOpensOnFailureRatio(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewBreaker(4, 0.5, time.Minute)
	for i := 0; i < 4; i++ {
		if !b.Allow(ctx) {
			t.Fatalf("breaker should allow request %d while closed", i)
		}
		b.Report(ctx, false)
	}
	if b.Allow(ctx) {
		t.Fatal("breaker should be open after sustained failures")
	}
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewBreaker(2, 0.5, 10*time.Millisecond)
	b.Report(ctx, false)
	b.Report(ctx, false)
	if b.Allow(ctx) {
		t.Fatal("breaker should be open")
	}
	time.Sleep(20 * time.Millisecond)
	if !b.Allow(ctx) {
		t.Fatal("breaker should probe after cool-off")
	}
	b.Report(ctx, true)
	if !b.Allow(ctx) {
		t.Fatal("breaker should be closed after successful probe")
	}
}

func TestHTTPClientRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cl := HTTPClient{
		Client:      srv.Client(),
		Breaker:     NewBreaker(10, 0.9, time.Minute),
		BaseBackoff: time.Millisecond,
		MaxAttempts: 5,
	}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := cl.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}
