package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// session is the pooled connection context for one host and TLS profile.
type session struct {
	client    *retryablehttp.Client
	transport http.RoundTripper
}

func (s *session) close() {
	s.client.HTTPClient.CloseIdleConnections()
}

func sessionKey(host string, certs Certs) string {
	return host + "|" + certs.Verify + "|" + certs.ClientCert
}

// session returns the pooled session for u, creating it on first use.
func (a *Authenticator) session(u *url.URL, certs Certs) (*session, error) {
	key := sessionKey(u.Host, certs)

	a.sessionsMu.RLock()
	s, ok := a.sessions[key]
	a.sessionsMu.RUnlock()
	if ok {
		return s, nil
	}

	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	if s, ok := a.sessions[key]; ok {
		return s, nil
	}

	s, err := a.newSession(certs)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("creating new session", "host", u.Host)
	a.sessions[key] = s
	return s, nil
}

func (a *Authenticator) newSession(certs Certs) (*session, error) {
	transport, err := a.newTransport(certs)
	if err != nil {
		return nil, err
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: a.timeout}
	rc.RetryMax = a.maxRetries
	rc.RetryWaitMin = a.retryDelay
	rc.RetryWaitMax = a.retryDelay * time.Duration(a.maxRetries+1)
	rc.Backoff = linearBackoff
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = errorHandler
	rc.Logger = newLeveledLogger(a.logger)

	return &session{client: rc, transport: transport}, nil
}

func (a *Authenticator) newTransport(certs Certs) (http.RoundTripper, error) {
	var base *http.Transport
	switch t := a.transport.(type) {
	case nil:
		base = a.defaultTransport()
	case *http.Transport:
		base = t.Clone()
	default:
		if certs != (Certs{}) {
			a.logger.Warn("custom transport ignores TLS settings", "verify", certs.Verify, "client_cert", certs.ClientCert)
		}
		return t, nil
	}

	if certs == (Certs{}) {
		return base, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if base.TLSClientConfig != nil {
		tlsConfig = base.TLSClientConfig.Clone()
	}
	if certs.Verify != "" {
		pem, err := os.ReadFile(certs.Verify)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", certs.Verify)
		}
		tlsConfig.RootCAs = pool
	}
	if certs.ClientCert != "" {
		cert, err := tls.LoadX509KeyPair(certs.ClientCert, certs.ClientCert)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	base.TLSClientConfig = tlsConfig
	return base, nil
}

func (a *Authenticator) defaultTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	resolver := a.resolver

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
			}
			return nil, fmt.Errorf("failed to dial any resolved IP")
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// linearBackoff waits one delay unit longer on every retry. attemptNum
// starts at zero for the first retry.
func linearBackoff(unit, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return unit * time.Duration(attemptNum+1)
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return isTransient(err), nil
	}
	return isRetryableStatus(resp.StatusCode), nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isTransient reports whether a transport error is a connection or OS
// level failure worth retrying. Certificate and protocol errors are not.
func isTransient(err error) bool {
	var (
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) || errors.As(err, &hostnameErr) {
		return false
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var errno syscall.Errno
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &errno):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, os.ErrDeadlineExceeded):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorHandler runs once retries are exhausted or a failure is terminal.
// Responses are handed back so status handling stays with the caller;
// transport failures become TransportError.
func errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if err == nil && resp != nil {
		return resp, nil
	}
	if resp != nil {
		resp.Body.Close()
	}

	te := &TransportError{Attempts: numTries, Transient: isTransient(err), Err: err}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		te.Method, te.URL, te.Err = urlErr.Op, urlErr.URL, urlErr.Err
	}
	return nil, te
}
