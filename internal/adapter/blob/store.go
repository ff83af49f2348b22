// Package blob is the out-of-band store used to carry responses too large to
// inline into a transport frame. Paths are opaque to everyone but the store
// implementations; a path produced by one side is addressable by the other.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound reports a read or delete of an absent blob.
var ErrNotFound = errors.New("blob not found")

// Store is the three-method side-channel contract. Upload never overwrites
// silently: the uploader supplies a unique name.
type Store interface {
	Upload(ctx context.Context, data []byte, name, folder string) (path string, err error)
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) (bool, error)
}
