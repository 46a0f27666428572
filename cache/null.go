package cache

import (
	"context"
	"time"
)

// Null never stores anything. Useful when caching is disabled.
type Null struct{}

// NewNull creates a null cache.
func NewNull() Cache {
	return Null{}
}

// Get always returns a miss.
func (Null) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

// Put does nothing.
func (Null) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (Null) Has(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (Null) Delete(ctx context.Context, key string) error {
	return nil
}

func (Null) Close() error {
	return nil
}

var _ Cache = Null{}
