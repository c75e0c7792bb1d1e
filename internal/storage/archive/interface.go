// Package archive keeps finished backtest runs in blob storage.
package archive

import "context"

// Storage is a flat key/value blob store. Keys use "/" separators on every backend.
// Read and Delete of a missing key return an error matching fs.ErrNotExist.
type Storage interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	// List returns all keys under prefix, relative to the store root
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
