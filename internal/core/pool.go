package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
)

// Pool queries several sources in priority order.
type Pool struct {
	sources []Source
	logger  *log.Logger
}

// NewPool returns a pool over sources, highest priority first.
func NewPool(logger *log.Logger, sources ...Source) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{sources: slices.Clone(sources), logger: logger}
}

// AddSource appends src with the lowest priority.
func (p *Pool) AddSource(src Source) error {
	if _, ok := p.Source(src.Name()); ok {
		return fmt.Errorf("source %q already in pool", src.Name())
	}
	p.sources = append(p.sources, src)
	return nil
}

// Sources returns the sources in priority order.
func (p *Pool) Sources() []Source {
	return slices.Clone(p.sources)
}

// Source returns the source called name.
func (p *Pool) Source(name string) (Source, bool) {
	for _, s := range p.sources {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// FindPackages returns the matches from dep's source when it names one,
// else the concatenated matches of every source.
func (p *Pool) FindPackages(ctx context.Context, dep Dependency) ([]*Package, error) {
	if dep.SourceName != "" {
		src, ok := p.Source(dep.SourceName)
		if !ok {
			return nil, fmt.Errorf("source %q for %s: %w", dep.SourceName, dep.Name, ErrNotFound)
		}
		return src.FindPackages(ctx, dep)
	}

	var packages []*Package
	for _, src := range p.sources {
		found, err := src.FindPackages(ctx, dep)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name(), err)
		}
		p.logger.Debug("matched packages", "source", src.Name(), "dependency", dep.String(), "count", len(found))
		packages = append(packages, found...)
	}
	return packages, nil
}

// Package returns the release from the first source that has it.
func (p *Pool) Package(ctx context.Context, name, version string, extras []string) (*Package, error) {
	for _, src := range p.sources {
		pkg, err := src.Package(ctx, name, version, extras)
		if err == nil {
			return pkg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", src.Name(), err)
		}
	}
	return nil, &PackageNotFoundError{Name: name, Version: version}
}
