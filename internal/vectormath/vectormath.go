// Package vectormath implements the dense-vector primitives the indexers
// build on: normalization, dot/Euclidean distance, centroids, radius, and the
// furthest-pair seed used to split a ball-tree node (spec §4.1).
package vectormath

import (
	"math"

	"vectordb/internal/apperr"
)

// Normalize returns v divided by its L2 norm. A zero vector is a BadVector
// error — there is no direction to normalize toward.
func Normalize(v []float32) ([]float32, error) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return nil, apperr.New(apperr.BadVector, "cannot normalize a zero vector")
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// Dot returns the dot product of a and b. Both must have the same length.
func Dot(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.DimMismatch, "dot: dimension mismatch %d != %d", len(a), len(b))
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Euclid returns the Euclidean distance between a and b. Both must have the
// same length.
func Euclid(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.DimMismatch, "euclid: dimension mismatch %d != %d", len(a), len(b))
	}
	var sumSq float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sumSq += d * d
	}
	return float32(math.Sqrt(sumSq)), nil
}

// Centroid returns the arithmetic mean of a non-empty set of vectors. The
// result is not re-normalized — ball-tree centers live in the ambient space,
// not on the unit sphere.
func Centroid(vs [][]float32) ([]float32, error) {
	if len(vs) == 0 {
		return nil, apperr.New(apperr.Internal, "centroid: empty set")
	}
	dim := len(vs[0])
	sum := make([]float64, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, apperr.New(apperr.DimMismatch, "centroid: dimension mismatch %d != %d", len(v), dim)
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / float64(len(vs)))
	}
	return out, nil
}

// Radius returns the maximum Euclidean distance from center to any point in
// vs. vs may be empty, in which case Radius returns 0.
func Radius(center []float32, vs [][]float32) (float32, error) {
	var maxR float32
	for _, v := range vs {
		d, err := Euclid(center, v)
		if err != nil {
			return 0, err
		}
		if d > maxR {
			maxR = d
		}
	}
	return maxR, nil
}

// FurthestPairSeed picks a deterministic split pair from vs: x0 is the first
// element, x1 is the point furthest from x0, and x2 is the point furthest
// from x1. Ties are broken by the first point encountered in input order, so
// the result is deterministic given the input ordering (spec §4.1). vs must
// have at least one element.
func FurthestPairSeed(vs [][]float32) (a, b []float32, err error) {
	if len(vs) == 0 {
		return nil, nil, apperr.New(apperr.Internal, "furthest_pair_seed: empty set")
	}
	if len(vs) == 1 {
		return vs[0], vs[0], nil
	}
	x0 := vs[0]
	x1, err := furthest(x0, vs)
	if err != nil {
		return nil, nil, err
	}
	x2, err := furthest(x1, vs)
	if err != nil {
		return nil, nil, err
	}
	return x1, x2, nil
}

// furthest returns the element of vs with the largest Euclidean distance
// from ref, breaking ties in favor of the earliest element.
func furthest(ref []float32, vs [][]float32) ([]float32, error) {
	var best []float32
	var bestDist float32 = -1
	for _, v := range vs {
		d, err := Euclid(ref, v)
		if err != nil {
			return nil, err
		}
		if d > bestDist {
			bestDist = d
			best = v
		}
	}
	return best, nil
}
