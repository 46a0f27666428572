// Package fetch downloads distribution artifacts through the authenticated
// client, guards each host with a circuit breaker and extracts release
// metadata from wheels and source archives.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/git-pkgs/pkgindex/client"
)

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream repository unavailable")
)

// Artifact contains the response from fetching an upstream artifact.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// FetcherInterface defines the interface for artifact fetchers.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
	Head(ctx context.Context, url string) (size int64, contentType string, err error)
}

// Doer sends a request with credentials and transient-failure retries
// already applied. *client.Authenticator implements it.
type Doer interface {
	Request(ctx context.Context, method, url string, opts ...client.RequestOption) (*http.Response, error)
}

// Fetcher downloads artifacts. Transport errors and 502/503/504 are
// retried by the Doer; the Fetcher itself only backs off on 429.
type Fetcher struct {
	doer       Doer
	maxRetries int
	baseDelay  time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxRetries sets how often a rate-limited fetch is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// NewFetcher creates a Fetcher that sends requests through doer.
func NewFetcher(doer Doer, opts ...Option) *Fetcher {
	f := &Fetcher{
		doer:       doer,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads an artifact from the given URL.
// The caller must close the returned Artifact.Body when done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter to prevent thundering herd
			delay := f.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(float64(delay) * (rand.Float64() * 0.1))
			delay += jitter

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		artifact, err := f.doFetch(ctx, url)
		if err == nil {
			return artifact, nil
		}
		lastErr = err

		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (f *Fetcher) doFetch(ctx context.Context, url string) (*Artifact, error) {
	resp, err := f.doer.Request(ctx, http.MethodGet, url,
		client.RaiseForStatus(false),
		client.WithHeader("Accept", "*/*"),
		client.SkipCache(),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact: %w", err)
	}

	if err := statusError(resp); err != nil {
		return nil, err
	}

	return &Artifact{
		Body:        resp.Body,
		Size:        contentLength(resp),
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}, nil
}

// Head checks if an artifact exists and returns its metadata without downloading.
func (f *Fetcher) Head(ctx context.Context, url string) (size int64, contentType string, err error) {
	resp, err := f.doer.Request(ctx, http.MethodHead, url, client.RaiseForStatus(false))
	if err != nil {
		return 0, "", fmt.Errorf("head request: %w", err)
	}

	if err := statusError(resp); err != nil {
		return 0, "", err
	}
	_ = resp.Body.Close()

	return contentLength(resp), resp.Header.Get("Content-Type"), nil
}

// statusError closes the body and maps the status to a sentinel for any
// non-200 response.
func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return ErrNotFound

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return ErrRateLimited

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return fmt.Errorf("%w: status %d", ErrUpstreamDown, resp.StatusCode)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}

func contentLength(resp *http.Response) int64 {
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return -1
}
