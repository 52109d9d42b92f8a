package index

import (
	"math"
	"testing"

	"vectordb/internal/model"

	"github.com/google/uuid"
)

func mustNormalize(t *testing.T, v []float32) []float32 {
	t.Helper()
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	n := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

func samplePoints(t *testing.T, n int) []Point {
	t.Helper()
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		angle := float64(i) * 0.13
		v := []float32{float32(math.Cos(angle)), float32(math.Sin(angle)), float32(i) * 0.001}
		pts[i] = Point{ID: uuid.New(), Vector: mustNormalize(t, v)}
	}
	return pts
}

func TestParseKindCaseInsensitive(t *testing.T) {
	k, err := ParseKind("ball_tree")
	if err != nil || k != model.IndexKindBallTree {
		t.Fatalf("got %v, %v", k, err)
	}
	k, err = ParseKind("brute_force")
	if err != nil || k != model.IndexKindExhaustive {
		t.Fatalf("got %v, %v", k, err)
	}
	if _, err := ParseKind("nonsense"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestBuildRejectsMixedDimensions(t *testing.T) {
	points := []Point{
		{ID: uuid.New(), Vector: []float32{1, 0}},
		{ID: uuid.New(), Vector: []float32{1, 0, 0}},
	}
	if _, err := Build(model.IndexKindExhaustive, points, 0); err == nil {
		t.Fatal("expected DimMismatch error")
	}
}

func TestEmptyLibraryBuildsEmptyIndex(t *testing.T) {
	for _, kind := range []model.IndexKind{model.IndexKindExhaustive, model.IndexKindBallTree} {
		idx, err := Build(kind, nil, 0)
		if err != nil {
			t.Fatalf("%v: Build: %v", kind, err)
		}
		results, err := idx.Search([]float32{1, 0}, 5)
		if err != nil {
			t.Fatalf("%v: Search: %v", kind, err)
		}
		if len(results) != 0 {
			t.Fatalf("%v: expected empty results, got %v", kind, results)
		}
	}
}

func TestTopKLargerThanVectorCountReturnsAll(t *testing.T) {
	points := samplePoints(t, 5)
	for _, kind := range []model.IndexKind{model.IndexKindExhaustive, model.IndexKindBallTree} {
		idx, err := Build(kind, points, 2)
		if err != nil {
			t.Fatalf("%v: Build: %v", kind, err)
		}
		results, err := idx.Search(points[0].Vector, 100)
		if err != nil {
			t.Fatalf("%v: Search: %v", kind, err)
		}
		if len(results) != len(points) {
			t.Fatalf("%v: expected %d results, got %d", kind, len(points), len(results))
		}
	}
}

func TestExhaustiveAndBallTreeAgreeOnTopKSet(t *testing.T) {
	points := samplePoints(t, 200)
	query := mustNormalize(t, []float32{1, 0.2, 0})

	exh, err := Build(model.IndexKindExhaustive, points, 0)
	if err != nil {
		t.Fatalf("build exhaustive: %v", err)
	}
	bt, err := Build(model.IndexKindBallTree, points, 10)
	if err != nil {
		t.Fatalf("build ball tree: %v", err)
	}

	k := 5
	rExh, err := exh.Search(query, k)
	if err != nil {
		t.Fatalf("exhaustive search: %v", err)
	}
	rBT, err := bt.Search(query, k)
	if err != nil {
		t.Fatalf("ball tree search: %v", err)
	}
	if len(rExh) != len(rBT) {
		t.Fatalf("result count mismatch: %d != %d", len(rExh), len(rBT))
	}

	setExh := map[uuid.UUID]float32{}
	for _, r := range rExh {
		setExh[r.ID] = r.Score
	}
	for _, r := range rBT {
		score, ok := setExh[r.ID]
		if !ok {
			t.Fatalf("ball tree returned id %v not in exhaustive top-k", r.ID)
		}
		if math.Abs(float64(score-r.Score)) > 1e-5 {
			t.Fatalf("score mismatch for %v: %v != %v", r.ID, score, r.Score)
		}
	}
}

func TestBallTreeUpperBoundIsAdmissible(t *testing.T) {
	points := samplePoints(t, 150)
	query := mustNormalize(t, []float32{0.3, 1, -0.2})

	bt, err := Build(model.IndexKindBallTree, points, 8)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	idx := bt.(*ballTreeIndexer)
	if idx.root == nil {
		t.Fatal("expected non-nil root")
	}

	var walk func(n *ballNode) error
	walk = func(n *ballNode) error {
		ub, err := upperBound(query, n)
		if err != nil {
			return err
		}
		var pts []Point
		if n.isLeaf() {
			pts = n.leaf
		} else {
			pts = collectLeafPoints(n)
		}
		for _, p := range pts {
			score, err := vectorsDot(query, p.Vector)
			if err != nil {
				return err
			}
			if score > ub+1e-6 {
				t.Fatalf("upper bound %v violated by point scoring %v", ub, score)
			}
		}
		if !n.isLeaf() {
			if err := walk(n.left); err != nil {
				return err
			}
			if err := walk(n.right); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(idx.root); err != nil {
		t.Fatalf("walk: %v", err)
	}
}

func collectLeafPoints(n *ballNode) []Point {
	if n.isLeaf() {
		return n.leaf
	}
	return append(collectLeafPoints(n.left), collectLeafPoints(n.right)...)
}

func vectorsDot(a, b []float32) (float32, error) {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

func TestStats(t *testing.T) {
	points := samplePoints(t, 10)
	idx, err := Build(model.IndexKindBallTree, points, 3)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stats := idx.Stats()
	if stats.Kind != model.IndexKindBallTree {
		t.Fatalf("expected BallTree kind, got %v", stats.Kind)
	}
	if stats.VectorCount != 10 {
		t.Fatalf("expected 10 vectors, got %d", stats.VectorCount)
	}
	if stats.Dimension != 3 {
		t.Fatalf("expected dimension 3, got %d", stats.Dimension)
	}
	if stats.BuiltAtEpochMs <= 0 {
		t.Fatal("expected positive built-at timestamp")
	}
}
