package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned when creating a collection whose name is
	// already registered.
	ErrAlreadyExists = errors.New("collection already exists")

	// ErrNotFound is returned for operations on an absent or deleted
	// collection.
	ErrNotFound = errors.New("collection not found")
)

// DuplicateIDError is returned by validated inserts when a kernel ID is
// already present in the collection, or appears twice in one batch.
type DuplicateIDError struct {
	Collection string
	ID         uint64
	Index      int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate point ID %d at index %d in collection %q", e.ID, e.Index, e.Collection)
}
