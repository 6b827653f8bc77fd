// Package storage provides the object-storage port used by ingest, transcoding
// and backup, with S3 and in-memory implementations, plus local scratch space
// for staging files around the encoder.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Object is a readable object fetched from the store.
// The caller is responsible for closing Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ObjectStore defines the object-storage operations the pipeline relies on.
type ObjectStore interface {
	// Put writes body under key, replacing any existing object.
	// A negative size means the length is unknown.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Get opens the object stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (*Object, error)

	// Copy duplicates srcKey to dstKey within the same bucket.
	// Returns ErrNotFound if srcKey does not exist.
	Copy(ctx context.Context, srcKey, dstKey string) error

	// PresignGet returns a time-limited download URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
