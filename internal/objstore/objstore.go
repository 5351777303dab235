// Package objstore abstracts the archive destination behind one interface,
// with backends for local disk, S3, Azure Blob, and Google Cloud Storage,
// per spec.md §4.G's "archived range lives in object storage, not the hot
// store" design. The interface mirrors the narrow Put/Get/List surface the
// archiver actually needs rather than exposing each SDK's full client.
package objstore

import (
	"context"
	"io"
)

// ObjectInfo describes one stored object, used for listing archived ranges.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Store is the narrow interface the archiver and unified reader use to
// move parquet files in and out of durable storage.
type Store interface {
	// Put uploads the contents of r under key, overwriting any existing
	// object at that key.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get opens the object for reading. Callers must close the returned
	// reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns every object whose key has the given prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// Delete removes the object at key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}
