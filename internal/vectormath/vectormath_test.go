package vectormath

import (
	"math"
	"testing"
	"testing/quick"
)

func TestNormalizeZeroVectorFails(t *testing.T) {
	_, err := Normalize([]float32{0, 0, 0})
	if err == nil {
		t.Fatal("expected error normalizing zero vector")
	}
}

func TestNormalizeProducesUnitVector(t *testing.T) {
	v := []float32{3, 4}
	n, err := Normalize(v)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var sumSq float64
	for _, x := range n {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", sumSq)
	}
}

func TestDotDimMismatch(t *testing.T) {
	_, err := Dot([]float32{1, 2}, []float32{1})
	if err == nil {
		t.Fatal("expected DimMismatch error")
	}
}

func TestDotUnitVectorsBoundedByOne(t *testing.T) {
	f := func(seed int64) bool {
		a, b := deterministicUnitPair(seed)
		dot, err := Dot(a, b)
		if err != nil {
			return false
		}
		return dot >= -1.0001 && dot <= 1.0001
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}

// deterministicUnitPair derives two unit vectors from a seed without using
// math/rand, keeping the property check hermetic.
func deterministicUnitPair(seed int64) ([]float32, []float32) {
	a := make([]float32, 8)
	b := make([]float32, 8)
	for i := range a {
		a[i] = float32(math.Sin(float64(seed)*0.7 + float64(i)))
		b[i] = float32(math.Cos(float64(seed)*1.3 + float64(i)))
	}
	na, err := Normalize(a)
	if err != nil {
		na = a
	}
	nb, err := Normalize(b)
	if err != nil {
		nb = b
	}
	return na, nb
}

func TestCentroidAndRadius(t *testing.T) {
	vs := [][]float32{{0, 0}, {2, 0}, {0, 2}, {2, 2}}
	c, err := Centroid(vs)
	if err != nil {
		t.Fatalf("Centroid: %v", err)
	}
	if c[0] != 1 || c[1] != 1 {
		t.Fatalf("expected centroid (1,1), got %v", c)
	}
	r, err := Radius(c, vs)
	if err != nil {
		t.Fatalf("Radius: %v", err)
	}
	want := float32(math.Sqrt(2))
	if math.Abs(float64(r-want)) > 1e-5 {
		t.Fatalf("expected radius %v, got %v", want, r)
	}
}

func TestFurthestPairSeedDeterministic(t *testing.T) {
	vs := [][]float32{{0, 0}, {1, 0}, {10, 0}, {10, 1}}
	a1, b1, err := FurthestPairSeed(vs)
	if err != nil {
		t.Fatalf("FurthestPairSeed: %v", err)
	}
	a2, b2, err := FurthestPairSeed(vs)
	if err != nil {
		t.Fatalf("FurthestPairSeed: %v", err)
	}
	if !equalVec(a1, a2) || !equalVec(b1, b2) {
		t.Fatal("expected deterministic result given fixed input ordering")
	}
}

func equalVec(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
