package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPProviderFetchesAndCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"Rupiah","rates":{"Rupiah":1,"US Dollar":15800}}`))
	}))
	defer srv.Close()

	p := &HTTPProvider{BaseURL: srv.URL, TTL: time.Hour}

	r, err := p.Rate(context.Background(), "US Dollar")
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if r != 15800 {
		t.Fatalf("rate = %g", r)
	}

	if r, _ := p.Rate(context.Background(), "Rupiah"); r != 1 {
		t.Fatalf("rate = %g", r)
	}
	if r, _ := p.Rate(context.Background(), "Doubloon"); r != 1 {
		t.Fatalf("unknown currency should convert 1:1, got %g", r)
	}

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected a single upstream fetch inside the TTL, got %d", n)
	}
}

func TestHTTPProviderRefreshesAfterTTL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"rates":{"Rupiah":1}}`))
	}))
	defer srv.Close()

	p := &HTTPProvider{BaseURL: srv.URL, TTL: time.Nanosecond}
	if _, err := p.Rate(context.Background(), "Rupiah"); err != nil {
		t.Fatalf("first rate: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := p.Rate(context.Background(), "Rupiah"); err != nil {
		t.Fatalf("second rate: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected a refresh after the TTL, got %d fetches", n)
	}
}

func TestHTTPProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &HTTPProvider{BaseURL: srv.URL}
	if _, err := p.Rate(context.Background(), "Rupiah"); err == nil {
		t.Fatalf("expected error on upstream 500")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{}}`))
	}))
	defer empty.Close()

	p = &HTTPProvider{BaseURL: empty.URL}
	if _, err := p.Rate(context.Background(), "Rupiah"); err == nil {
		t.Fatalf("expected error on empty rate table")
	}
}
