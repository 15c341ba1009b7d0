package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/bookhub/internal/internaltypes"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		Provider:   "test",
		BaseURL:    srv.URL,
		Timeout:    timeout,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		Decorate:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer k") },
		Log:        zerolog.Nop(),
	})
}

func TestGetRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing auth header")
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}, time.Second)

	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/ping"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var out struct{ OK bool }
	if err := resp.Decode(&out); err != nil || !out.OK {
		t.Fatalf("Decode = %+v, %v", out, err)
	}
	if hits.Load() != 3 {
		t.Fatalf("server saw %d requests, want 3", hits.Load())
	}
}

func TestPostWithoutKeyIsNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, time.Second)

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/book", JSON: map[string]string{"a": "b"}})
	if !errors.Is(err, internaltypes.ErrProviderUnavailable) {
		t.Fatalf("got %v, want provider unavailable", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("non-idempotent POST sent %d times", hits.Load())
	}
}

func TestPostWithKeyIsRetriedWithSameKey(t *testing.T) {
	t.Parallel()

	var (
		hits atomic.Int32
		keys = make(chan string, 3)
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get(IdempotencyHeader)
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}, time.Second)

	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/book", JSON: struct{}{}, IdempotencyKey: "key-1"})
	if err != nil || resp.Status != http.StatusCreated {
		t.Fatalf("Do = %d, %v", resp.Status, err)
	}
	close(keys)
	for k := range keys {
		if k != "key-1" {
			t.Fatalf("idempotency key = %q", k)
		}
	}
}

func TestSlowUpstreamIsATimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 20*time.Millisecond)

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/book"})
	if !errors.Is(err, internaltypes.ErrProviderTimeout) {
		t.Fatalf("got %v, want provider timeout", err)
	}
	if errors.Is(err, internaltypes.ErrProviderUnavailable) {
		t.Fatal("timeout must not also match unavailable")
	}
}

func TestClientErrorsAreReturnedAsResponses(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"no such booking"}`))
	}, time.Second)

	resp, err := c.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/bookings/x"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusNotFound || resp.OK() {
		t.Fatalf("status = %d", resp.Status)
	}
	if err := c.Unexpected("cancel", resp); !errors.Is(err, internaltypes.ErrProviderUnavailable) {
		t.Fatalf("Unexpected = %v", err)
	}
}

func TestBudgetCoversEveryRetry(t *testing.T) {
	t.Parallel()

	cfg := Config{Timeout: time.Second, MaxRetries: 2, Backoff: 100 * time.Millisecond}
	if got, want := Budget(cfg), 3*time.Second+300*time.Millisecond; got != want {
		t.Fatalf("Budget = %s, want %s", got, want)
	}
	if got := Budget(Config{}); got != 10*time.Second {
		t.Fatalf("Budget(defaults) = %s", got)
	}
}

func TestTimedOutGetIsRetriedWithinBudget(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			<-r.Context().Done()
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}, 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), Budget(c.cfg))
	defer cancel()
	if _, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/slots"}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("server saw %d requests, want 2", hits.Load())
	}
}
