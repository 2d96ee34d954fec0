// Package device is the boundary to the VexFS kernel module.
//
// Everything above this package works with typed, validated requests; this
// package turns them into packed ioctl records and back. The unsafe
// address-taking required by the ABI is confined to the ioctl implementation
// (ioctl_linux.go); the Sim device serves the same interface entirely in
// memory for tests and development without the kernel module.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/lspecian/vexfs-sub000/abi"
)

// ErrTimeout is returned when a device call exceeds its configured bound.
// It is distinct from kernel-reported errors: the call may still be running.
var ErrTimeout = errors.New("device call timed out")

// ErrNoVectorFile is returned by Remove when no vector file backs the
// collection, wrapped in a DeviceError.
var ErrNoVectorFile = errors.New("no such vector file")

// DeviceError wraps a failure reported by the OS or the kernel module.
// The underlying message is preserved verbatim for diagnostics.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Device is a VexFS mount. Each collection is backed by one vector file;
// Open returns a handle whose control operations target that file.
type Device interface {
	// Open opens (creating if absent) the vector file backing a collection.
	Open(ctx context.Context, name string) (Handle, error)

	// Remove deletes the vector file backing a collection.
	Remove(ctx context.Context, name string) error

	Close() error
}

// Handle issues the four VexFS control operations against one vector file.
//
// Calls are synchronous and block until the kernel responds. Buffers
// referenced by a request must not be reused or freed until the call
// returns, and must never be shared across concurrent calls.
type Handle interface {
	// SetVectorMeta configures the vector file's metadata.
	SetVectorMeta(ctx context.Context, info *abi.VectorFileInfo) error

	// GetVectorMeta reads the vector file's metadata as the kernel sees it.
	GetVectorMeta(ctx context.Context) (*abi.VectorFileInfo, error)

	// BatchInsert inserts a batch of vectors.
	BatchInsert(ctx context.Context, req *abi.BatchInsert) error

	// Search runs a k-nearest search and returns the number of results the
	// kernel wrote into the request's result buffers.
	Search(ctx context.Context, req *abi.Search) (int, error)

	Close() error
}
