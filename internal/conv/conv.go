// Package conv provides bounds-checked integer conversions for values that
// cross the ioctl ABI boundary, where counts and dimensions are fixed-width
// unsigned fields but Go code works in int.
package conv

import (
	"fmt"
	"math"
)

// IntToUint32 converts an int to uint32, rejecting negatives and overflow.
func IntToUint32(v int) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("cannot convert %d to uint32: negative", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("cannot convert %d to uint32: out of range", v)
	}
	return uint32(v), nil
}

// Uint32ToInt converts a uint32 to int, rejecting overflow on 32-bit platforms.
func Uint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, fmt.Errorf("cannot convert %d to int: out of range", v)
	}
	return int(v), nil
}

// Uint64ToInt converts a uint64 to int, rejecting overflow.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("cannot convert %d to int: out of range", v)
	}
	return int(v), nil
}
