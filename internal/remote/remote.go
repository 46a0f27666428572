// Package remote provides a package source backed by a simple (PEP 503
// style) HTML index served over HTTP.
package remote

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/pkgindex/cache"
	"github.com/git-pkgs/pkgindex/client"
	"github.com/git-pkgs/pkgindex/fetch"
	"github.com/git-pkgs/pkgindex/internal/core"
	"github.com/git-pkgs/pkgindex/internal/links"
	"github.com/git-pkgs/pkgindex/internal/version"
)

const (
	kind = core.SourceLegacy

	// ReservedName is kept for the public index.
	ReservedName = "pypi"

	// DefaultMatchTTL is how long matched version lists are reused.
	DefaultMatchTTL = 5 * time.Minute
)

func init() {
	core.Register(kind, func(name string, opts core.Options) (core.Source, error) {
		if opts.Auth == nil {
			return nil, fmt.Errorf("%s source %s: no authenticator", kind, name)
		}
		return New(name, opts.URL, opts.Auth, WithCache(opts.Cache), WithLogger(opts.Logger))
	})
}

// Repository is a remote index. Packages added with AddPackage take
// precedence over the index in Package.
type Repository struct {
	core.PackageList

	name     string
	url      string
	auth     *client.Authenticator
	urls     *client.IndexURLs
	fetcher  fetch.FetcherInterface
	store    cache.Cache
	matches  cache.Cache
	releases cache.Cache
	matchTTL time.Duration
	group    singleflight.Group
	logger   *log.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithCache sets the store backing the match and release caches. It
// defaults to an in-memory store.
func WithCache(c cache.Cache) Option {
	return func(r *Repository) {
		if c != nil {
			r.store = c
		}
	}
}

// WithMatchTTL sets how long matched version lists are reused.
func WithMatchTTL(d time.Duration) Option {
	return func(r *Repository) {
		r.matchTTL = d
	}
}

// WithFetcher replaces the artifact fetcher used for release metadata.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(r *Repository) {
		r.fetcher = f
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a repository called name for the index at url.
func New(name, url string, auth *client.Authenticator, opts ...Option) (*Repository, error) {
	if name == ReservedName {
		return nil, fmt.Errorf("%w: [%s] is reserved for repositories", core.ErrReservedName, name)
	}
	url = strings.TrimRight(url, "/")
	if url == "" {
		return nil, fmt.Errorf("repository %s has no url", name)
	}

	r := &Repository{
		name:     name,
		url:      url,
		auth:     auth,
		matchTTL: DefaultMatchTTL,
		logger:   log.Default(),
	}
	r.urls = &client.IndexURLs{Base: url, PURLFn: r.purl}
	for _, opt := range opts {
		opt(r)
	}
	if r.store == nil {
		r.store = cache.NewMemory()
	}
	if r.fetcher == nil {
		r.fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(auth))
	}
	r.matches = cache.Namespace(r.store, name+":matches")
	r.releases = cache.Namespace(r.store, name+":releases")
	return r, nil
}

func (r *Repository) Name() string {
	return r.name
}

// URL returns the index root without a trailing slash.
func (r *Repository) URL() string {
	return r.url
}

// URLs returns the URL builder for this index.
func (r *Repository) URLs() client.URLBuilder {
	return r.urls
}

// matchEntry is what the match cache holds for one key. The skipped
// pre-releases are kept so a cache hit applies the same fallback.
type matchEntry struct {
	Matched []version.Version `json:"matched"`
	Ignored []version.Version `json:"ignored"`
}

// FindPackages lists the versions on the package's index page that
// satisfy dep. A missing page yields no packages.
func (r *Repository) FindPackages(ctx context.Context, dep core.Dependency) ([]*core.Package, error) {
	c, allow := core.ConstraintsFromDependency(dep)

	key := dep.Name
	if !c.IsAny() {
		key += ":" + c.String()
	}

	entry, err := r.matchVersions(ctx, key, dep.Name, c, allow)
	if err != nil {
		return nil, err
	}

	versions := core.Select(entry.Matched, entry.Ignored, c)
	packages := make([]*core.Package, 0, len(versions))
	for _, v := range versions {
		packages = append(packages, r.newPackage(cmp.Or(dep.PrettyName, dep.Name), v))
	}
	r.logger.Debug("matched packages", "source", r.name, "dependency", dep.String(), "count", len(packages))
	return packages, nil
}

func (r *Repository) matchVersions(ctx context.Context, key, name string, c version.Constraint, allow bool) (*matchEntry, error) {
	if entry, ok := r.cachedMatch(ctx, key); ok {
		return entry, nil
	}

	v, err := r.shared(ctx, "match:"+key, func(ctx context.Context) (any, error) {
		page, err := r.Page(ctx, name)
		if errors.Is(err, core.ErrNotFound) {
			return &matchEntry{}, nil
		}
		if err != nil {
			return nil, err
		}

		entry := &matchEntry{}
		entry.Matched, entry.Ignored = core.Match(slices.Collect(page.Versions()), c, allow,
			func(v version.Version) version.Version { return v }, core.Always[version.Version])

		if data, err := json.Marshal(entry); err == nil {
			if err := r.matches.Put(ctx, key, data, r.matchTTL); err != nil {
				r.logger.Warn("writing match cache", "source", r.name, "key", key, "error", err)
			}
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*matchEntry), nil
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// that outlives any single caller's cancellation; each caller still
// returns as soon as its own ctx is done.
func (r *Repository) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := r.group.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (r *Repository) cachedMatch(ctx context.Context, key string) (*matchEntry, bool) {
	data, ok, err := r.matches.Get(ctx, key)
	if err != nil {
		r.logger.Warn("reading match cache", "source", r.name, "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var entry matchEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = r.matches.Delete(ctx, key)
		return nil, false
	}
	return &entry, true
}

// FindLinksForPackage returns the artifacts of pkg's version. A missing
// page yields no links.
func (r *Repository) FindLinksForPackage(ctx context.Context, pkg *core.Package) ([]links.Link, error) {
	page, err := r.Page(ctx, pkg.Name)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return slices.Collect(page.LinksForVersion(pkg.Version)), nil
}

// Page fetches and parses the index page for name. Any error status is
// reported as a PackageNotFoundError; transport failures are returned as
// they are.
func (r *Repository) Page(ctx context.Context, name string) (*links.Page, error) {
	pageURL := r.urls.Index(name)
	resp, err := r.auth.Get(ctx, pageURL, client.WithHeader("Accept", "text/html"))
	if err != nil {
		var httpErr *client.HTTPError
		if errors.As(err, &httpErr) {
			if !httpErr.IsNotFound() {
				r.logger.Warn("index page unavailable", "source", r.name, "url", httpErr.URL, "status", httpErr.StatusCode)
			}
			return nil, &core.PackageNotFoundError{Source: r.name, Name: name}
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL.String()
	}
	page, err := links.ParsePage(pageURL, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return page, nil
}

func (r *Repository) newPackage(name string, v version.Version) *core.Package {
	p := core.NewPackage(name, v)
	p.SourceType = kind
	p.SourceReference = r.name
	p.SourceURL = r.url
	return p
}

// purl is the package URL of name at ver as served by this index.
func (r *Repository) purl(name, ver string) string {
	v, err := version.Parse(ver)
	if err != nil {
		return ""
	}
	return r.newPackage(name, v).PURL()
}

var _ core.Source = (*Repository)(nil)
