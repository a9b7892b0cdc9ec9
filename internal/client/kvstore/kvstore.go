// Package kvstore provides the durable local key-value store underneath the
// device cache. It is the only layer that touches raw bytes; everything above
// it works with typed records.
package kvstore

import "context"

// Store is durable string-addressable storage, available offline.
type Store interface {
	// Get returns the value for key, or (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes all given keys as a single batch.
	DeleteMany(ctx context.Context, keys []string) error

	// List returns every key with the given prefix and its value.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
