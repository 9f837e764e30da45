// Package store provides the key-value backends quest state is saved to.
package store

import (
	"context"
	"errors"
)

// ErrCorrupt is returned when a stored blob fails its integrity check.
var ErrCorrupt = errors.New("store: corrupt blob")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Store is a byte-oriented key-value store.
type Store interface {
	// Get returns the data under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (data []byte, found bool, err error)

	// Set writes data under key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte) error

	// Close releases the backend's resources.
	Close() error
}
