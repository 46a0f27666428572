package core

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/git-pkgs/pkgindex/internal/links"
)

// Source is anything that can list packages satisfying a dependency.
type Source interface {
	Name() string

	// FindPackages returns the packages matching dep in relevance order.
	FindPackages(ctx context.Context, dep Dependency) ([]*Package, error)

	HasPackage(pkg *Package) bool
	AddPackage(pkg *Package) bool
	RemovePackage(pkg *Package) bool
	Search(query string) []*Package
	Packages() []*Package
	Len() int

	// Package returns the release details of one version.
	Package(ctx context.Context, name, version string, extras []string) (*Package, error)

	FindLinksForPackage(ctx context.Context, pkg *Package) ([]links.Link, error)
}

// PackageList is an ordered set of packages keyed by unique name. It
// implements the list operations of Source and is safe for concurrent use.
type PackageList struct {
	mu       sync.RWMutex
	packages []*Package
}

// HasPackage reports whether a package with the same unique name is held.
func (l *PackageList) HasPackage(pkg *Package) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index(pkg.UniqueName()) >= 0
}

// AddPackage appends pkg unless a package with its unique name is already
// held. It reports whether pkg was added.
func (l *PackageList) AddPackage(pkg *Package) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index(pkg.UniqueName()) >= 0 {
		return false
	}
	l.packages = append(l.packages, pkg)
	return true
}

// RemovePackage drops the package with pkg's unique name.
func (l *PackageList) RemovePackage(pkg *Package) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(pkg.UniqueName())
	if i < 0 {
		return false
	}
	l.packages = slices.Delete(l.packages, i, i+1)
	return true
}

// Search returns the packages whose name contains query.
func (l *PackageList) Search(query string) []*Package {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var results []*Package
	for _, p := range l.packages {
		if strings.Contains(p.Name, query) {
			results = append(results, p)
		}
	}
	return results
}

// Packages returns a snapshot of the held packages.
func (l *PackageList) Packages() []*Package {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.packages)
}

func (l *PackageList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.packages)
}

// Lookup returns a clone of the package with the given canonical name and
// version text.
func (l *PackageList) Lookup(name, version string) (*Package, bool) {
	name = links.CanonicalizeName(name)
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.packages {
		if p.Name == name && p.Version.String() == version {
			return p.Clone(), true
		}
	}
	return nil, false
}

func (l *PackageList) index(uniqueName string) int {
	return slices.IndexFunc(l.packages, func(p *Package) bool {
		return p.UniqueName() == uniqueName
	})
}
