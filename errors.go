package vexfs

import (
	"errors"
	"fmt"

	"github.com/lspecian/vexfs-sub000/device"
	"github.com/lspecian/vexfs-sub000/registry"
)

var (
	// ErrAlreadyExists is returned when creating a collection whose name is
	// already registered.
	ErrAlreadyExists = registry.ErrAlreadyExists

	// ErrNotFound is returned for operations on an absent or deleted
	// collection.
	ErrNotFound = registry.ErrNotFound

	// ErrTimeout is returned when a device call exceeds the configured bound.
	ErrTimeout = device.ErrTimeout

	// ErrClosed is returned for operations on a closed client.
	ErrClosed = errors.New("client is closed")

	// ErrEmptyBatch is returned when InsertPoints is called with no points.
	ErrEmptyBatch = errors.New("empty point batch")

	// ErrMissingVector is returned when a point in a batch has no vector.
	ErrMissingVector = errors.New("point has no vector")

	// ErrConflictingInsertOptions is returned when an insert combines options
	// that cannot both hold, such as Overwrite with ValidateDuplicates.
	ErrConflictingInsertOptions = errors.New("conflicting insert options")
)

// InvalidLimitError indicates a search limit outside the accepted range.
type InvalidLimitError struct {
	Limit int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid search limit: %d (must be 1..1000)", e.Limit)
}
