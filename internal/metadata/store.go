// Package metadata persists versioned technical metadata for stored media
// files and implements rollback over the version history.
package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediavault/mediavault-api/internal/media"
)

// ErrVersionExists is returned by Put when a record with the same owner,
// filename and version is already stored.
var ErrVersionExists = errors.New("metadata: version already exists")

// Record is one metadata version for a file. Records are append-only.
type Record struct {
	Owner    string `json:"-" dynamodbav:"-"`
	Filename string `json:"filename" dynamodbav:"filename"`
	Version  int64  `json:"version" dynamodbav:"version"`
	media.ProbeResult
}

// Store is the metadata-store port.
type Store interface {
	// Put inserts rec. Returns ErrVersionExists if the version is taken.
	Put(ctx context.Context, rec Record) error

	// Query returns every version stored for (owner, filename), in no
	// guaranteed order.
	Query(ctx context.Context, owner, filename string) ([]Record, error)

	// Latest returns the highest version for (owner, filename).
	// The boolean is false when no version exists.
	Latest(ctx context.Context, owner, filename string) (Record, bool, error)
}

func versionKey(filename string, version int64) string {
	return fmt.Sprintf("%s#%020d", filename, version)
}
