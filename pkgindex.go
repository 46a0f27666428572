// Package pkgindex finds the versions of a package that a simple HTML
// package index offers for a dependency, and fetches release details
// through an authenticated, retrying HTTP client.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/pkgindex"
//		_ "github.com/git-pkgs/pkgindex/all"
//	)
//
//	auth := pkgindex.NewAuthenticator(nil)
//	defer auth.Close()
//
//	src, err := pkgindex.New("legacy", "private", pkgindex.Options{
//		URL:  "https://pypi.example.org/simple",
//		Auth: auth,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	dep, _ := pkgindex.NewDependency("requests", ">=2.0,<3.0")
//	packages, err := src.FindPackages(context.Background(), dep)
//
// Source kinds register themselves when imported. To import all of them,
// use the all subpackage.
package pkgindex

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/pkgindex/client"
	"github.com/git-pkgs/pkgindex/internal/core"
	"github.com/git-pkgs/pkgindex/internal/links"
	"github.com/git-pkgs/pkgindex/internal/version"
)

// Re-export types from internal/core
type (
	// Source is anything that can list packages satisfying a dependency.
	Source = core.Source

	// Package is one version of a package as offered by a source.
	Package = core.Package

	// Dependency is a requirement on a package.
	Dependency = core.Dependency

	// FileHash is the hash of one release artifact.
	FileHash = core.FileHash

	// Pool queries several sources in priority order.
	Pool = core.Pool

	// Options are handed to a source factory.
	Options = core.Options

	// PackageNotFoundError is returned when a package or version is absent.
	PackageNotFoundError = core.PackageNotFoundError
)

// Re-export types from the link extractor and version packages
type (
	Link       = links.Link
	Page       = links.Page
	Version    = version.Version
	Constraint = version.Constraint
)

// Re-export types from client
type (
	// Authenticator executes requests with per-repository credentials and
	// certificates.
	Authenticator = client.Authenticator

	// Config exposes repository settings to the Authenticator.
	Config = client.Config

	// Credential is a username and password pair.
	Credential = client.Credential

	// CredentialStore looks up credentials by URL or host.
	CredentialStore = client.CredentialStore

	HTTPError      = client.HTTPError
	TransportError = client.TransportError
)

// Re-export errors
var (
	ErrNotFound     = core.ErrNotFound
	ErrReservedName = core.ErrReservedName
	ErrNetwork      = client.ErrNetwork
)

// Re-export source kinds
const (
	KindLegacy = core.SourceLegacy
	KindMemory = "memory"
)

// New creates a source of the given kind. The kind must be registered by
// importing its package or the all subpackage.
func New(kind, name string, opts Options) (Source, error) {
	return core.New(kind, name, opts)
}

// SupportedKinds returns all registered source kinds.
func SupportedKinds() []string {
	return core.SupportedKinds()
}

// NewPool returns a pool over sources, highest priority first.
func NewPool(logger *log.Logger, sources ...Source) *Pool {
	return core.NewPool(logger, sources...)
}

// NewAuthenticator creates an Authenticator. cfg may be nil.
func NewAuthenticator(cfg Config, opts ...client.Option) *Authenticator {
	return client.New(cfg, opts...)
}

// NewDependency parses constraint and canonicalizes name.
func NewDependency(name, constraint string) (Dependency, error) {
	return core.NewDependency(name, constraint)
}

// DependencyFromPURL turns a pypi purl into a dependency.
func DependencyFromPURL(purl string) (Dependency, error) {
	return core.DependencyFromPURL(purl)
}

// ParseVersion parses a PEP 440 version.
func ParseVersion(s string) (Version, error) {
	return version.Parse(s)
}

// ParseConstraint parses a version constraint such as ">=1.0,<2.0".
func ParseConstraint(s string) (Constraint, error) {
	return version.ParseConstraint(s)
}

// CanonicalizeName normalizes a package name for comparison.
func CanonicalizeName(name string) string {
	return links.CanonicalizeName(name)
}

// Latest returns the highest stable package, or the highest pre-release
// when there is no stable one.
func Latest(packages []*Package) *Package {
	return core.Latest(packages)
}

// BulkFindPackages matches several dependencies in parallel.
// Failed lookups are omitted from the results.
func BulkFindPackages(ctx context.Context, src core.Finder, deps []Dependency) map[string][]*Package {
	return core.BulkFindPackages(ctx, src, deps)
}

// BulkFindPackagesWithConcurrency matches dependencies with a custom
// concurrency limit.
func BulkFindPackagesWithConcurrency(ctx context.Context, src core.Finder, deps []Dependency, concurrency int) map[string][]*Package {
	return core.BulkFindPackagesWithConcurrency(ctx, src, deps, concurrency)
}
