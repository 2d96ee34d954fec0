package ieee754

import "fmt"

// DimensionError indicates a vector dimension outside the kernel's accepted
// range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DimensionError struct {
	Dimension int
	cause     error
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid dimension: %d (must be %d..%d)", e.Dimension, MinDimensions, MaxDimensions)
}

func (e *DimensionError) Unwrap() error { return e.cause }

// DimensionMismatchError indicates a vector whose length differs from the
// expected dimension. Index is the position of the offending vector within a
// batch, or -1 when not applicable.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	Index    int
	cause    error
}

func (e *DimensionMismatchError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("dimension mismatch at index %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.cause }
