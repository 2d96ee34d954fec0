// Package distance maps the closed set of distance metrics to the integer
// codes understood by the VexFS kernel module, and provides scalar reference
// kernels for the simulated device.
//
// The codes are an external ABI contract and must be preserved bit-for-bit:
// Euclidean=0x00, Cosine=0x01, Dot=0x02.
package distance

import "math"

// Metric represents a distance metric. The underlying value is the kernel ABI
// code.
type Metric uint32

const (
	Euclidean Metric = 0x00
	Cosine    Metric = 0x01
	Dot       Metric = 0x02
)

// Names of the supported metrics, in ABI code order.
var names = [...]string{"Euclidean", "Cosine", "Dot"}

func (m Metric) String() string {
	if int(m) < len(names) {
		return names[m]
	}
	return "Unknown"
}

// Code returns the kernel ABI code for the metric.
func (m Metric) Code() uint32 { return uint32(m) }

// Valid reports whether m is one of the known metrics.
func (m Metric) Valid() bool { return int(m) < len(names) }

// Parse maps a metric name to its Metric. The set is closed; there is no
// fuzzy matching.
func Parse(name string) (Metric, error) {
	switch name {
	case "Euclidean":
		return Euclidean, nil
	case "Cosine":
		return Cosine, nil
	case "Dot":
		return Dot, nil
	default:
		return 0, &UnsupportedDistanceError{Name: name}
	}
}

// FromCode maps a kernel ABI code back to its Metric.
func FromCode(code uint32) (Metric, error) {
	m := Metric(code)
	if !m.Valid() {
		return 0, &UnsupportedDistanceError{Code: code, HasCode: true}
	}
	return m, nil
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// DotProduct calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func DotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// CosineSimilarity calculates the cosine similarity of two vectors.
// Returns 0 if either vector has zero L2 norm.
func CosineSimilarity(a, b []float32) float32 {
	dot := DotProduct(a, b)
	na := DotProduct(a, a)
	nb := DotProduct(b, b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}

// Provider returns the scalar distance function for the given metric.
//
// These are reference kernels for the simulated device only; on a real
// deployment the kernel module computes distances.
func Provider(m Metric) (Func, error) {
	switch m {
	case Euclidean:
		return SquaredL2, nil
	case Cosine:
		return CosineSimilarity, nil
	case Dot:
		return DotProduct, nil
	default:
		return nil, &UnsupportedDistanceError{Code: uint32(m), HasCode: true}
	}
}

// Ascending reports whether lower scores rank better for the metric.
// Euclidean distance sorts ascending; similarity metrics sort descending.
func Ascending(m Metric) bool { return m == Euclidean }
