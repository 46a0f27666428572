package core

import (
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/pkgindex/cache"
	"github.com/git-pkgs/pkgindex/client"
)

// Options are handed to a Factory.
type Options struct {
	URL      string
	Auth     *client.Authenticator
	Cache    cache.Cache
	Logger   *log.Logger
	Packages []*Package
}

// Factory creates a source called name.
type Factory func(name string, opts Options) (Source, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register adds a source factory for kind (e.g. "legacy", "memory").
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
}

// New creates a source of the given kind.
func New(kind, name string, opts Options) (Source, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source kind: %s", kind)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return factory(name, opts)
}

// SupportedKinds returns all registered source kinds, sorted.
func SupportedKinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}
