// Package testutil provides testing utilities for the VexFS client.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating deterministic random vectors and for
// computing exact nearest neighbors as ground truth.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float32, 128)
//	rng.FillUniform(vec) // uniform [0, 1)
//
// # Exact Search (Ground Truth)
//
//	results := testutil.ExactTopK(query, dataset, k, distance.Euclidean)
package testutil
