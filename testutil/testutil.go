package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/lspecian/vexfs-sub000/distance"
)

// SearchResult represents an exact-search result.
type SearchResult struct {
	ID    uint64
	Score float32
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := 0; i < num; i++ {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}
	return vectors
}

// ExactTopK computes the exact top-k neighbors of query within dataset under
// the given metric, ordered the way the kernel reports: ascending score for
// Euclidean, descending for Cosine and Dot. IDs are the dataset indices.
func ExactTopK(query []float32, dataset [][]float32, k int, m distance.Metric) []SearchResult {
	fn, err := distance.Provider(m)
	if err != nil {
		panic(err)
	}

	results := make([]SearchResult, len(dataset))
	for i, vec := range dataset {
		results[i] = SearchResult{ID: uint64(i), Score: fn(query, vec)}
	}

	asc := distance.Ascending(m)
	sort.SliceStable(results, func(i, j int) bool {
		if asc {
			return results[i].Score < results[j].Score
		}
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// ComputeRecall returns the fraction of exact result IDs present in got.
func ComputeRecall(got, exact []SearchResult) float64 {
	if len(exact) == 0 {
		return 1.0
	}
	want := make(map[uint64]struct{}, len(exact))
	for _, r := range exact {
		want[r.ID] = struct{}{}
	}
	hits := 0
	for _, r := range got {
		if _, ok := want[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(exact))
}
