package cache

import "context"

// Options selects a backend. The first non-empty field wins in the order
// RedisURL, MongoURI, Dir; with none set an in-process cache is returned.
type Options struct {
	Dir      string
	RedisURL string
	MongoURI string
	Disabled bool
}

// Open builds the cache described by opts.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch {
	case opts.Disabled:
		return NewNull(), nil
	case opts.RedisURL != "":
		c, err := NewRedis(ctx, opts.RedisURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case opts.MongoURI != "":
		c, err := NewMongo(ctx, opts.MongoURI, "", "")
		if err != nil {
			return nil, err
		}
		return c, nil
	case opts.Dir != "":
		c, err := NewFile(opts.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return NewMemory(), nil
}
