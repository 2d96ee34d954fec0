// Package ieee754 converts between float32 vectors and their raw 32-bit
// IEEE-754 bit patterns.
//
// The VexFS kernel module operates purely in integer space: vector components
// cross the ioctl boundary as uint32 bit patterns, never as floats. Conversion
// is a bit reinterpretation, not a value transformation — it must not round,
// clamp, or normalize. Round-trip is exact for every non-NaN float32
// (including -0, infinities, and subnormals).
package ieee754

import "math"

// Dimension bounds accepted by the kernel module.
const (
	MinDimensions = 1
	MaxDimensions = 65536
)

// FloatToBits reinterprets the IEEE-754 single-precision encoding of v as an
// unsigned 32-bit integer.
func FloatToBits(v float32) uint32 {
	return math.Float32bits(v)
}

// BitsToFloat is the inverse of FloatToBits. Every 32-bit pattern is a valid
// float32 bit pattern, including NaNs and infinities.
func BitsToFloat(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// FloatsToBits converts a vector element-wise, preserving order and length.
func FloatsToBits(values []float32) []uint32 {
	bits := make([]uint32, len(values))
	for i, v := range values {
		bits[i] = math.Float32bits(v)
	}
	return bits
}

// BitsToFloats is the inverse of FloatsToBits.
func BitsToFloats(bits []uint32) []float32 {
	values := make([]float32, len(bits))
	for i, b := range bits {
		values[i] = math.Float32frombits(b)
	}
	return values
}

// PrepareVector validates the vector's dimension count and converts it to
// kernel bit representation.
func PrepareVector(vector []float32) ([]uint32, error) {
	if len(vector) < MinDimensions || len(vector) > MaxDimensions {
		return nil, &DimensionError{Dimension: len(vector)}
	}
	return FloatsToBits(vector), nil
}

// PrepareBatch validates that every vector shares the first vector's
// dimension, then flattens all bit arrays into one sequence in input order
// (row-major, vector-major).
func PrepareBatch(vectors [][]float32) ([]uint32, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	if dim < MinDimensions || dim > MaxDimensions {
		return nil, &DimensionError{Dimension: dim}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &DimensionMismatchError{Expected: dim, Actual: len(v), Index: i}
		}
	}
	flat := make([]uint32, 0, len(vectors)*dim)
	for _, v := range vectors {
		for _, x := range v {
			flat = append(flat, math.Float32bits(x))
		}
	}
	return flat, nil
}
