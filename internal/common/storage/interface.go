package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the requested key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage is the read side of the blob store that holds problem fixtures.
type ObjectStorage interface {
	// GetObject opens a reader for an object. Caller must close the returned reader.
	// A missing key yields an error matching ErrObjectNotFound.
	GetObject(ctx context.Context, bucket, objectKey string) (io.ReadCloser, error)

	// BucketExists reports whether bucket is reachable and present.
	BucketExists(ctx context.Context, bucket string) (bool, error)
}
