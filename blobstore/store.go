// Package blobstore abstracts where the registry keeps its durable state:
// journal segments and registry snapshots.
//
// Snapshots and journal segments are small, immutable, write-once blobs, so
// the interface is whole-blob Put/Get rather than streaming. The default
// in-memory store keeps the client dependency-free; LocalStore persists to a
// directory; the s3 and minio subpackages persist to object storage.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob or commit pointer does not exist.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes immutable blobs by name.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put writes a blob atomically. Overwrites an existing blob of the
	// same name.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads a whole blob. Returns ErrNotFound if absent.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// CommitStore records which snapshot is current. Stores with atomic rename
// implement this with a CURRENT file; object stores without rename use an
// external pointer (e.g. a DynamoDB item).
type CommitStore interface {
	// Commit atomically marks name as the current snapshot.
	Commit(ctx context.Context, name string) error

	// Current returns the committed snapshot name, or ErrNotFound if no
	// snapshot has been committed yet.
	Current(ctx context.Context) (string, error)
}
