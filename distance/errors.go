package distance

import "fmt"

// UnsupportedDistanceError indicates an unknown metric name or code.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type UnsupportedDistanceError struct {
	Name    string
	Code    uint32
	HasCode bool
	cause   error
}

func (e *UnsupportedDistanceError) Error() string {
	if e.HasCode {
		return fmt.Sprintf("unsupported distance code: %d (valid: 0=Euclidean, 1=Cosine, 2=Dot)", e.Code)
	}
	return fmt.Sprintf("unsupported distance: %q (valid: Cosine, Euclidean, Dot)", e.Name)
}

func (e *UnsupportedDistanceError) Unwrap() error { return e.cause }
