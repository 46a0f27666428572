package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/git-pkgs/pkgindex/client"
)

func TestCircuitBreakerFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("test content"))
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(newTestFetcher(t, nil))

	artifact, err := cbFetcher.Fetch(context.Background(), server.URL+"/foo-1.0.tar.gz")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, _ := io.ReadAll(artifact.Body)
	if string(body) != "test content" {
		t.Errorf("expected 'test content', got %q", string(body))
	}
}

func TestCircuitBreakerHead_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1234")
		w.Header().Set("Content-Type", "application/octet-stream")
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(newTestFetcher(t, nil))

	size, contentType, err := cbFetcher.Head(context.Background(), server.URL+"/foo-1.0.tar.gz")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if size != 1234 {
		t.Errorf("expected size 1234, got %d", size)
	}
	if contentType != "application/octet-stream" {
		t.Errorf("expected content type application/octet-stream, got %s", contentType)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"files host", "https://files.pythonhosted.org/packages/abc/def/file.tar.gz", "files.pythonhosted.org"},
		{"with port", "https://example.com:8080/path", "example.com:8080"},
		{"invalid URL", "not-a-valid-url", "not-a-valid-url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostOf(tt.url); got != tt.expected {
				t.Errorf("hostOf(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}

func TestCircuitBreakerMultipleHosts(t *testing.T) {
	server1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("server1"))
	}))
	defer server1.Close()

	server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("server2"))
	}))
	defer server2.Close()

	cbFetcher := NewCircuitBreakerFetcher(newTestFetcher(t, nil))
	if states := cbFetcher.GetBreakerState(); len(states) != 0 {
		t.Errorf("expected empty states, got %d entries", len(states))
	}

	for _, u := range []string{server1.URL, server2.URL} {
		art, err := cbFetcher.Fetch(context.Background(), u+"/test.tar.gz")
		if err != nil {
			t.Fatalf("fetch %s failed: %v", u, err)
		}
		_ = art.Body.Close()
	}

	states := cbFetcher.GetBreakerState()
	if len(states) != 2 {
		t.Errorf("expected 2 breaker states, got %d", len(states))
	}
	for host, state := range states {
		if state != "closed" {
			t.Errorf("%s: expected closed state, got %s", host, state)
		}
	}
}

func TestCircuitBreakerOpensOnFailures(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(newTestFetcher(t, []client.Option{client.WithMaxRetries(0)}))

	var err error
	for range 10 {
		_, err = cbFetcher.Fetch(context.Background(), server.URL+"/test.tar.gz")
	}
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("err = %v, want ErrUpstreamDown", err)
	}

	if n := requests.Load(); n != BreakerThreshold {
		t.Errorf("requests = %d, want %d before the breaker opened", n, BreakerThreshold)
	}
	for _, state := range cbFetcher.GetBreakerState() {
		if state != "open" {
			t.Errorf("state = %s, want open", state)
		}
	}
}

func TestCircuitBreakerIgnoresNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cbFetcher := NewCircuitBreakerFetcher(newTestFetcher(t, nil))
	for range 10 {
		if _, err := cbFetcher.Fetch(context.Background(), server.URL+"/missing.tar.gz"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	for _, state := range cbFetcher.GetBreakerState() {
		if state != "closed" {
			t.Errorf("state = %s, want closed", state)
		}
	}
}
