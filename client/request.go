package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	cacheKeyPrefix = "http:"
	errorBodyLimit = 1024
)

// maxCachedBody bounds how much of a response is buffered for the cache.
var maxCachedBody int64 = 32 << 20

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	raiseForStatus bool
	certs          Certs
	header         http.Header
	body           []byte
	hasBody        bool
	skipCache      bool
}

// RaiseForStatus controls whether responses with a 4xx or 5xx status are
// turned into an *HTTPError. It defaults to true.
func RaiseForStatus(raise bool) RequestOption {
	return func(o *requestOptions) {
		o.raiseForStatus = raise
	}
}

// WithVerify overrides the CA bundle resolved for the URL.
func WithVerify(path string) RequestOption {
	return func(o *requestOptions) {
		o.certs.Verify = path
	}
}

// WithClientCert overrides the client certificate resolved for the URL.
func WithClientCert(path string) RequestOption {
	return func(o *requestOptions) {
		o.certs.ClientCert = path
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Set(key, value)
	}
}

// WithBody sets the request body.
func WithBody(body []byte) RequestOption {
	return func(o *requestOptions) {
		o.body = body
		o.hasBody = true
	}
}

// SkipCache bypasses the response cache for this request.
func SkipCache() RequestOption {
	return func(o *requestOptions) {
		o.skipCache = true
	}
}

// Get issues a GET request.
func (a *Authenticator) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*http.Response, error) {
	return a.Request(ctx, http.MethodGet, rawURL, opts...)
}

// Post issues a POST request with the given body.
func (a *Authenticator) Post(ctx context.Context, rawURL, contentType string, body []byte, opts ...RequestOption) (*http.Response, error) {
	opts = append([]RequestOption{WithHeader("Content-Type", contentType), WithBody(body)}, opts...)
	return a.Request(ctx, http.MethodPost, rawURL, opts...)
}

// Request sends a request through the session for the URL's host,
// attaching resolved credentials and TLS material and retrying transient
// failures. The caller must close the response body.
func (a *Authenticator) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*http.Response, error) {
	o := requestOptions{raiseForStatus: true, header: http.Header{}}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	cacheable := method == http.MethodGet && a.cache != nil && !o.skipCache && !o.hasBody
	if cacheable {
		if resp, ok := a.cachedResponse(ctx, cacheKey(u)); ok {
			return a.checkStatus(resp, u, o)
		}
	}

	var body interface{}
	if o.hasBody {
		body = o.body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range o.header {
		req.Header[key] = values
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	if cred := a.CredentialsForURL(rawURL); cred.Complete() {
		req.SetBasicAuth(cred.Username, cred.Password)
	}
	// net/http would otherwise send userinfo as basic auth on its own
	req.URL.User = nil

	certs := a.CertsForURL(rawURL)
	if o.certs.Verify != "" {
		certs.Verify = o.certs.Verify
	}
	if o.certs.ClientCert != "" {
		certs.ClientCert = o.certs.ClientCert
	}

	s, err := a.session(u, certs)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			te.Method, te.URL = method, u.Redacted()
		}
		return nil, err
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		if resp, err = a.storeResponse(ctx, cacheKey(u), resp); err != nil {
			return nil, err
		}
	}
	return a.checkStatus(resp, u, o)
}

func (a *Authenticator) checkStatus(resp *http.Response, u *url.URL, o requestOptions) (*http.Response, error) {
	if !o.raiseForStatus || resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return nil, &HTTPError{
		StatusCode: resp.StatusCode,
		URL:        u.Redacted(),
		Body:       string(snippet),
	}
}

// DeleteCache drops the cached response for rawURL.
func (a *Authenticator) DeleteCache(ctx context.Context, rawURL string) error {
	if a.cache == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	return a.cache.Delete(ctx, cacheKey(u))
}

// cacheKey is the response cache key for u. Userinfo never ends up in a key.
func cacheKey(u *url.URL) string {
	stripped := *u
	stripped.User = nil
	return cacheKeyPrefix + stripped.String()
}

type cachedResponse struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
}

func (a *Authenticator) cachedResponse(ctx context.Context, key string) (*http.Response, bool) {
	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("reading response cache", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var cr cachedResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		_ = a.cache.Delete(ctx, key)
		return nil, false
	}

	header := cr.Header
	if header == nil {
		header = http.Header{}
	}
	header.Set("X-From-Cache", "1")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", cr.StatusCode, http.StatusText(cr.StatusCode)),
		StatusCode:    cr.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(cr.Body)),
		ContentLength: int64(len(cr.Body)),
	}, true
}

// storeResponse buffers the body and writes it to the cache when the
// response allows it. The returned response reads from the buffer. Bodies
// over maxCachedBody are passed through uncached.
func (a *Authenticator) storeResponse(ctx context.Context, key string, resp *http.Response) (*http.Response, error) {
	ttl, ok := cacheLifetime(resp.Header, a.cacheTTL)
	if !ok || resp.ContentLength > maxCachedBody {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCachedBody+1))
	if err != nil {
		resp.Body.Close()
		return nil, &TransportError{Method: http.MethodGet, URL: strings.TrimPrefix(key, cacheKeyPrefix), Attempts: 1, Transient: true, Err: err}
	}
	if int64(len(body)) > maxCachedBody {
		resp.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
		return resp, nil
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	data, err := json.Marshal(cachedResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body})
	if err != nil {
		return resp, nil
	}
	if err := a.cache.Put(ctx, key, data, ttl); err != nil {
		a.logger.Warn("writing response cache", "key", key, "error", err)
	}
	return resp, nil
}

// cacheLifetime reads Cache-Control. It returns false when the response
// must not be stored.
func cacheLifetime(h http.Header, fallback time.Duration) (time.Duration, bool) {
	ttl := fallback
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(directive), "=")
		switch strings.ToLower(name) {
		case "no-store", "no-cache":
			return 0, false
		case "max-age":
			secs, err := strconv.Atoi(strings.Trim(value, `"`))
			if err != nil {
				continue
			}
			if secs <= 0 {
				return 0, false
			}
			ttl = time.Duration(secs) * time.Second
		}
	}
	return ttl, true
}
