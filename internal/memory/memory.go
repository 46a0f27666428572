// Package memory provides a package source backed by a flat in-memory list.
package memory

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/pkgindex/internal/core"
	"github.com/git-pkgs/pkgindex/internal/links"
	"github.com/git-pkgs/pkgindex/internal/version"
)

const kind = "memory"

func init() {
	core.Register(kind, func(name string, opts core.Options) (core.Source, error) {
		r := New(name, opts.Packages...)
		r.logger = opts.Logger
		return r, nil
	})
}

// Repository holds packages added at runtime, typically the locked or
// locally built ones.
type Repository struct {
	core.PackageList
	name   string
	logger *log.Logger
}

// New returns a repository holding packages, skipping duplicates.
func New(name string, packages ...*core.Package) *Repository {
	r := &Repository{name: name, logger: log.Default()}
	for _, p := range packages {
		r.AddPackage(p)
	}
	return r
}

func (r *Repository) Name() string {
	return r.name
}

// FindPackages returns the held packages named dep.Name that satisfy its
// constraint, in insertion order.
func (r *Repository) FindPackages(_ context.Context, dep core.Dependency) ([]*core.Package, error) {
	var candidates []*core.Package
	for _, p := range r.Packages() {
		if p.Name == dep.Name {
			candidates = append(candidates, p)
		}
	}

	c, allow := core.ConstraintsFromDependency(dep)
	matched, ignored := core.Match(candidates, c, allow, packageVersion, isStandard)
	found := core.Select(matched, ignored, c)
	r.logger.Debug("matched packages", "source", r.name, "dependency", dep.String(), "count", len(found))
	return found, nil
}

// Package returns a copy of the held package with the given version text.
func (r *Repository) Package(_ context.Context, name, v string, _ []string) (*core.Package, error) {
	if p, ok := r.Lookup(name, v); ok {
		return p, nil
	}
	return nil, &core.PackageNotFoundError{Source: r.name, Name: name, Version: v}
}

// FindLinksForPackage returns nothing; held packages have no artifacts.
func (r *Repository) FindLinksForPackage(context.Context, *core.Package) ([]links.Link, error) {
	return nil, nil
}

func packageVersion(p *core.Package) version.Version { return p.Version }

func isStandard(p *core.Package) bool { return p.SourceType == core.SourceStandard }

var _ core.Source = (*Repository)(nil)
