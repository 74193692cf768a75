// Package cache stores small byte blobs under string keys with an optional
// expiry.
//
// The CLI keeps the detected host platform here so that repeated runs do
// not shell out to ldd or query the kernel every time. Keys are built with
// Key, whose "kind:" prefix is what cache hooks report:
//
//	c, err := cache.NewFileCache(dir)
//	key := cache.Key("platform", runtime.GOOS, runtime.GOARCH)
//	if data, ok, _ := c.Get(ctx, key); ok {
//	    ...
//	}
package cache

import (
	"context"
	"time"
)

// Cache is a key-value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key and whether it was found. Expired
	// entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
