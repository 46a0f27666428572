package core

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 15

// Finder is the matching half of Source. Pool implements it too.
type Finder interface {
	FindPackages(ctx context.Context, dep Dependency) ([]*Package, error)
}

// Latest returns the highest stable package, or the highest pre-release
// when there is no stable one. It returns nil for an empty slice.
func Latest(packages []*Package) *Package {
	var best, bestPre *Package
	for _, p := range packages {
		if p.IsPrerelease() {
			if bestPre == nil || bestPre.Version.Less(p.Version) {
				bestPre = p
			}
			continue
		}
		if best == nil || best.Version.Less(p.Version) {
			best = p
		}
	}
	if best != nil {
		return best
	}
	return bestPre
}

// BulkFindPackages matches several dependencies in parallel.
// Failed lookups are omitted from the results.
// Returns a map of canonical dependency name to matching packages.
func BulkFindPackages(ctx context.Context, src Finder, deps []Dependency) map[string][]*Package {
	return BulkFindPackagesWithConcurrency(ctx, src, deps, defaultConcurrency)
}

// BulkFindPackagesWithConcurrency matches dependencies with a custom
// concurrency limit.
func BulkFindPackagesWithConcurrency(ctx context.Context, src Finder, deps []Dependency, concurrency int) map[string][]*Package {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	results := make(map[string][]*Package)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, dep := range deps {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			packages, err := src.FindPackages(ctx, dep)
			if err == nil {
				mu.Lock()
				results[dep.Name] = packages
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
