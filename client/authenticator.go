// Package client executes HTTP requests against package repositories,
// resolving credentials and TLS material per URL, pooling one session per
// host, retrying transient failures and caching responses.
package client

import (
	"cmp"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/dnscache"

	"github.com/git-pkgs/pkgindex/cache"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 5
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultCacheTTL   = time.Hour
	DefaultUserAgent  = "pkgindex/1.0"

	// uploadURL is the implicit repository behind the reserved "pypi" name.
	uploadURL = "https://upload.pypi.org/legacy/"
)

// Config exposes the repository settings the authenticator needs.
type Config interface {
	Repositories() []string
	RepositoryURL(name string) string
	Cert(name string) string
	ClientCert(name string) string
	HTTPBasic(name string) (Credential, bool)
}

// RepositoryConfig is a configured repository split into the parts used
// for URL matching.
type RepositoryConfig struct {
	Name       string
	URL        string
	Host       string
	Path       string
	Cert       string
	ClientCert string
}

func newRepositoryConfig(name, rawURL string) RepositoryConfig {
	rc := RepositoryConfig{Name: name, URL: rawURL}
	if u, err := url.Parse(rawURL); err == nil {
		rc.Host = u.Host
		rc.Path = u.Path
	}
	return rc
}

// Certs holds TLS file paths for a request. Verify is a CA bundle used to
// verify the server; ClientCert is a PEM file holding a certificate and
// its key.
type Certs struct {
	Verify     string
	ClientCert string
}

// Authenticator is safe for concurrent use.
type Authenticator struct {
	config     Config
	store      CredentialStore
	cache      cache.Cache
	transport  http.RoundTripper
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	userAgent  string
	cacheTTL   time.Duration
	logger     *log.Logger

	reposOnce sync.Once
	repos     []RepositoryConfig

	mu          sync.RWMutex
	credentials map[string]Credential
	repoForURL  map[string]*RepositoryConfig
	certs       map[string]Certs

	sessionsMu sync.RWMutex
	sessions   map[string]*session
	resolver   *dnscache.Resolver
	stop       chan struct{}
	closeOnce  sync.Once
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithCredentialStore sets the store consulted after URL and configured
// credentials.
func WithCredentialStore(s CredentialStore) Option {
	return func(a *Authenticator) {
		a.store = s
	}
}

// WithCache enables response caching for GET requests.
func WithCache(c cache.Cache) Option {
	return func(a *Authenticator) {
		a.cache = c
	}
}

// WithTransport sets the base round tripper for every session.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Authenticator) {
		a.transport = rt
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		a.timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(a *Authenticator) {
		a.maxRetries = n
	}
}

// WithRetryDelay sets the delay unit; the n-th retry waits n units.
func WithRetryDelay(d time.Duration) Option {
	return func(a *Authenticator) {
		a.retryDelay = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(a *Authenticator) {
		a.userAgent = ua
	}
}

// WithHTTPCacheTTL sets the lifetime of cached responses that carry no
// max-age directive.
func WithHTTPCacheTTL(d time.Duration) Option {
	return func(a *Authenticator) {
		a.cacheTTL = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *Authenticator) {
		a.logger = l
	}
}

// New creates an Authenticator. cfg may be nil when no repositories are
// configured.
func New(cfg Config, opts ...Option) *Authenticator {
	a := &Authenticator{
		config:      cfg,
		timeout:     DefaultTimeout,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		userAgent:   DefaultUserAgent,
		cacheTTL:    DefaultCacheTTL,
		logger:      log.Default(),
		credentials: make(map[string]Credential),
		repoForURL:  make(map[string]*RepositoryConfig),
		certs:       make(map[string]Certs),
		sessions:    make(map[string]*session),
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.transport == nil {
		a.resolver = &dnscache.Resolver{}
		go a.refreshDNS(5 * time.Minute)
	}
	return a
}

func (a *Authenticator) refreshDNS(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.resolver.Refresh(true)
		}
	}
}

// Close tears down every pooled session. The authenticator must not be
// used afterwards.
func (a *Authenticator) Close() error {
	a.closeOnce.Do(func() {
		close(a.stop)
		a.sessionsMu.Lock()
		for key, s := range a.sessions {
			s.close()
			delete(a.sessions, key)
		}
		a.sessionsMu.Unlock()
	})
	return nil
}

// IsCached reports whether responses are cached.
func (a *Authenticator) IsCached() bool {
	return a.cache != nil
}

// ConfiguredRepositories returns the repositories from the config in
// declaration order. The list is built once.
func (a *Authenticator) ConfiguredRepositories() []RepositoryConfig {
	a.reposOnce.Do(func() {
		if a.config == nil {
			return
		}
		for _, name := range a.config.Repositories() {
			rc := newRepositoryConfig(name, a.config.RepositoryURL(name))
			rc.Cert = a.config.Cert(name)
			rc.ClientCert = a.config.ClientCert(name)
			a.repos = append(a.repos, rc)
		}
	})
	return a.repos
}

// Repository returns the configured repository called name.
func (a *Authenticator) Repository(name string) (RepositoryConfig, bool) {
	for _, rc := range a.ConfiguredRepositories() {
		if rc.Name == name {
			return rc, true
		}
	}
	return RepositoryConfig{}, false
}

// RepositoryForURL returns the repository whose URL best covers rawURL:
// the longest path prefix on the same host, else the first repository on
// the same host, else nil.
func (a *Authenticator) RepositoryForURL(rawURL string) *RepositoryConfig {
	a.mu.RLock()
	rc, ok := a.repoForURL[rawURL]
	a.mu.RUnlock()
	if ok {
		return rc
	}

	rc = a.selectRepository(rawURL)

	a.mu.Lock()
	a.repoForURL[rawURL] = rc
	a.mu.Unlock()
	return rc
}

func (a *Authenticator) selectRepository(rawURL string) *RepositoryConfig {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	var hostOnly, pathMatch []RepositoryConfig
	for _, rc := range a.ConfiguredRepositories() {
		if rc.Host != u.Host {
			continue
		}
		if strings.HasPrefix(u.Path, rc.Path) {
			pathMatch = append(pathMatch, rc)
			continue
		}
		hostOnly = append(hostOnly, rc)
	}

	if len(pathMatch) > 0 {
		slices.SortStableFunc(pathMatch, func(x, y RepositoryConfig) int {
			return cmp.Compare(len(y.Path), len(x.Path))
		})
		return &pathMatch[0]
	}
	if len(hostOnly) > 0 {
		if len(hostOnly) > 1 {
			names := make([]string, len(hostOnly))
			for i, rc := range hostOnly {
				names[i] = rc.Name
			}
			a.logger.Debug("multiple source configurations found", "host", u.Host, "repositories", strings.Join(names, ", "))
		}
		return &hostOnly[0]
	}
	return nil
}

// CertsForURL returns the TLS paths of the repository covering rawURL.
func (a *Authenticator) CertsForURL(rawURL string) Certs {
	a.mu.RLock()
	c, ok := a.certs[rawURL]
	a.mu.RUnlock()
	if ok {
		return c
	}

	if rc := a.RepositoryForURL(rawURL); rc != nil {
		c = Certs{Verify: rc.Cert, ClientCert: rc.ClientCert}
	}

	a.mu.Lock()
	a.certs[rawURL] = c
	a.mu.Unlock()
	return c
}

// CredentialsForURL resolves credentials for rawURL. Userinfo embedded in
// the URL wins; otherwise the covering repository's configured http-basic
// auth, then the credential store by repository URL and by host. Resolved
// credentials are remembered per URL.
func (a *Authenticator) CredentialsForURL(rawURL string) Credential {
	a.mu.RLock()
	c, ok := a.credentials[rawURL]
	a.mu.RUnlock()
	if ok {
		return c
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Credential{}
	}

	if u.User != nil {
		c.Username = u.User.Username()
		c.Password, _ = u.User.Password()
	} else if rc := a.RepositoryForURL(rawURL); rc != nil {
		c, _ = a.httpAuth(*rc)
	}

	if !c.IsZero() {
		a.mu.Lock()
		a.credentials[rawURL] = c
		a.mu.Unlock()
	}
	return c
}

// HTTPAuth returns the credentials for the repository called name. The
// name "pypi" refers to the public upload endpoint even when it is not
// configured.
func (a *Authenticator) HTTPAuth(name string) (Credential, bool) {
	var rc RepositoryConfig
	if name == "pypi" {
		rc = newRepositoryConfig(name, uploadURL)
	} else {
		var ok bool
		if rc, ok = a.Repository(name); !ok {
			return Credential{}, false
		}
	}
	return a.httpAuth(rc)
}

func (a *Authenticator) httpAuth(rc RepositoryConfig) (Credential, bool) {
	var configured Credential
	if a.config != nil {
		configured, _ = a.config.HTTPBasic(rc.Name)
	}
	if configured.Password != "" {
		return configured, true
	}
	return a.lookupStore(rc, configured.Username)
}

func (a *Authenticator) lookupStore(rc RepositoryConfig, username string) (Credential, bool) {
	if a.store != nil {
		if c, ok := a.store.Lookup(rc.URL, username); ok {
			return c, true
		}
		if c, ok := a.store.Lookup(rc.Host, username); ok {
			return c, true
		}
	}
	if username != "" {
		return Credential{Username: username}, true
	}
	return Credential{}, false
}

// AuthenticatedURL embeds resolved credentials into rawURL. The query and
// fragment are dropped. rawURL is returned unchanged when credentials are
// incomplete.
func (a *Authenticator) AuthenticatedURL(rawURL string) string {
	c := a.CredentialsForURL(rawURL)
	if !c.Complete() {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	out := url.URL{
		Scheme:  u.Scheme,
		User:    url.UserPassword(c.Username, c.Password),
		Host:    u.Host,
		Path:    u.Path,
		RawPath: u.RawPath,
	}
	return out.String()
}
