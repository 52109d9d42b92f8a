// Package index implements the per-library nearest-neighbor indexers (spec
// §4.2-§4.4): an exhaustive scan and a metric ball tree, behind one uniform
// contract so the lifecycle manager can swap between them by name.
package index

import (
	"vectordb/internal/apperr"
	"vectordb/internal/model"
	"vectordb/internal/vectormath"

	"github.com/google/uuid"
)

// DefaultLeafSize is the ball tree's default points-per-leaf threshold.
const DefaultLeafSize = 40

// Point is one (chunk id, embedding) pair handed to an indexer at build time.
type Point struct {
	ID     uuid.UUID
	Vector []float32
}

// Result is one (chunk id, similarity score) pair returned from a search,
// scored by cosine similarity (equivalently dot product, since vectors are
// unit-normalized at build time).
type Result struct {
	ID    uuid.UUID
	Score float32
}

// Stats is the observability record returned by an indexer (spec §4.4).
type Stats struct {
	Kind           model.IndexKind
	VectorCount    int
	Dimension      int
	BuiltAtEpochMs int64
}

// Indexer is the uniform contract both index kinds satisfy: build once
// (via the package-level Build factory), then search any number of times.
// An Indexer is immutable after construction; re-indexing builds a new one
// and swaps it in wholesale.
type Indexer interface {
	// Search returns the top-k (chunk id, score) pairs for q, sorted by
	// score descending, ties broken by insertion order. k may exceed the
	// indexed vector count, in which case all vectors are returned.
	Search(q []float32, k int) ([]Result, error)
	Stats() Stats
}

// Build constructs an Indexer of the given kind over points. leafSize is
// only consulted for IndexKindBallTree; pass 0 to use DefaultLeafSize.
// Points may be empty, producing an indexer whose Search always returns an
// empty slice. All points must share one embedding dimension; mixed
// dimensions are a hard error (spec invariant 4). Every vector is
// L2-normalized before it is stored; a zero vector is a BadVector error.
func Build(kind model.IndexKind, points []Point, leafSize int) (Indexer, error) {
	if err := checkUniformDimension(points); err != nil {
		return nil, err
	}
	normalized := make([]Point, len(points))
	for i, p := range points {
		v, err := vectormath.Normalize(p.Vector)
		if err != nil {
			return nil, err
		}
		normalized[i] = Point{ID: p.ID, Vector: v}
	}
	points = normalized
	switch kind {
	case model.IndexKindExhaustive:
		return buildExhaustive(points), nil
	case model.IndexKindBallTree:
		if leafSize <= 0 {
			leafSize = DefaultLeafSize
		}
		return buildBallTree(points, leafSize), nil
	default:
		return nil, apperr.New(apperr.Validation, "unknown indexer kind %q", kind)
	}
}

// ParseKind normalizes a user-supplied indexer-type string (case-insensitive
// per spec §9's tolerance note) to an IndexKind.
func ParseKind(s string) (model.IndexKind, error) {
	switch toUpper(s) {
	case string(model.IndexKindExhaustive):
		return model.IndexKindExhaustive, nil
	case string(model.IndexKindBallTree):
		return model.IndexKindBallTree, nil
	default:
		return "", apperr.New(apperr.Validation, "unknown indexer_type %q", s)
	}
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func checkUniformDimension(points []Point) error {
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0].Vector)
	for _, p := range points[1:] {
		if len(p.Vector) != dim {
			return apperr.New(apperr.DimMismatch, "mixed embedding dimensions in index build: %d != %d", len(p.Vector), dim)
		}
	}
	return nil
}

func dimensionOf(points []Point) int {
	if len(points) == 0 {
		return 0
	}
	return len(points[0].Vector)
}

func dimMismatch(got, want int) error {
	return apperr.New(apperr.DimMismatch, "query dimension %d does not match index dimension %d", got, want)
}
