package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestFetcher(t *testing.T, retries int) *Fetcher {
	t.Helper()
	doer, err := NewTransport(TransportOptions{
		Client:      &http.Client{Timeout: 5 * time.Second},
		Retries:     retries,
		Concurrency: 4,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Logger:      discard(),
	})
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	return NewFetcher(doer, "pharmascrape-test")
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if ua := r.Header.Get("User-Agent"); ua != "pharmascrape-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	body, err := newTestFetcher(t, 3).GetBody(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if string(body) != "ok" || calls.Load() != 3 {
		t.Errorf("body=%q calls=%d", body, calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 3).GetBody(context.Background(), srv.URL, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusNotFound {
		t.Fatalf("err = %v, want NetworkError 404", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRetriesExhaustedSurfaceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t, 2).GetBody(context.Background(), srv.URL, nil)
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want NetworkError 502", err)
	}
}

func TestCancelledContextStopsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestFetcher(t, 2).GetBody(ctx, srv.URL, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNewTransportValidates(t *testing.T) {
	if _, err := NewTransport(TransportOptions{}); err == nil {
		t.Error("nil client should fail")
	}
	if _, err := NewTransport(TransportOptions{Client: http.DefaultClient, Retries: -1}); err == nil {
		t.Error("negative retries should fail")
	}
}

func TestBackoffDoesNotHoldConcurrencySlot(t *testing.T) {
	var flakyCalls atomic.Int32
	failed := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if flakyCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			close(failed)
			return
		}
		io.WriteString(w, "late")
	})
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "fast")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Backoff is at least 200ms after jitter.
	doer, err := NewTransport(TransportOptions{
		Client:      &http.Client{Timeout: 5 * time.Second},
		Retries:     1,
		Concurrency: 1,
		BaseDelay:   400 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
		Logger:      discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	f := NewFetcher(doer, "pharmascrape-test")

	slow := make(chan error, 1)
	go func() {
		_, err := f.GetBody(context.Background(), srv.URL+"/flaky", nil)
		slow <- err
	}()
	<-failed

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	body, err := f.GetBody(ctx, srv.URL+"/fast", nil)
	if err != nil || string(body) != "fast" {
		t.Fatalf("request during backoff: body=%q err=%v", body, err)
	}
	if err := <-slow; err != nil {
		t.Errorf("retried request: %v", err)
	}
	if flakyCalls.Load() != 2 {
		t.Errorf("flaky calls = %d, want 2", flakyCalls.Load())
	}
}
