package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Expiration bounds how long an entry lives. Absolute is measured from the fill; Sliding
// is measured from the last hit and never extends past Absolute. A zero field disables
// that bound.
type Expiration struct {
	Absolute time.Duration
	Sliding  time.Duration
}

// Loader produces the encoded value for a missing key.
type Loader func(ctx context.Context) ([]byte, error)

// Cache is a read-through cache keyed by string. Errors returned by a Loader are
// returned unchanged and never stored.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, exp Expiration, load Loader) ([]byte, error)
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// Fetch is GetOrCompute with a JSON codec. Every caller decodes its own copy, so
// results can be mutated freely.
func Fetch[T any](ctx context.Context, c Cache, key string, exp Expiration, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := c.GetOrCompute(ctx, key, exp, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		// A corrupt entry is dropped and the loader answers directly.
		_ = c.Invalidate(ctx, key)
		return load(ctx)
	}
	return out, nil
}

// Noop never stores anything; every lookup runs the loader.
type Noop struct{}

func (Noop) GetOrCompute(ctx context.Context, _ string, _ Expiration, load Loader) ([]byte, error) {
	return load(ctx)
}

func (Noop) Invalidate(context.Context, ...string) error { return nil }

func (Noop) InvalidatePrefix(context.Context, string) error { return nil }
