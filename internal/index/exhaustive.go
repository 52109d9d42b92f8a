package index

import (
	"runtime"
	"sync"

	"vectordb/internal/model"
	"vectordb/internal/vectormath"
)

// minWorkersThreshold mirrors the teacher's adaptive-concurrency rule: below
// this many points, a single goroutine beats the overhead of fanning out.
const minWorkersThreshold = 500

// exhaustiveIndexer is a flat linear scan over unit-normalized vectors.
// Build is O(n); Search is O(n) per query (spec §4.2).
type exhaustiveIndexer struct {
	points []Point
	dim    int
	builtAt int64
}

func buildExhaustive(points []Point) *exhaustiveIndexer {
	cp := append([]Point(nil), points...)
	return &exhaustiveIndexer{
		points:  cp,
		dim:     dimensionOf(points),
		builtAt: model.NowMillis(),
	}
}

func (e *exhaustiveIndexer) Stats() Stats {
	return Stats{
		Kind:           model.IndexKindExhaustive,
		VectorCount:    len(e.points),
		Dimension:      e.dim,
		BuiltAtEpochMs: e.builtAt,
	}
}

func (e *exhaustiveIndexer) Search(q []float32, k int) ([]Result, error) {
	if len(e.points) == 0 || k <= 0 {
		return []Result{}, nil
	}
	qn, err := vectormath.Normalize(q)
	if err != nil {
		return nil, err
	}
	if len(qn) != e.dim {
		return nil, dimMismatch(len(qn), e.dim)
	}

	numWorkers := runtime.NumCPU()
	if len(e.points) < minWorkersThreshold {
		numWorkers = 1
	} else if numWorkers > len(e.points)/minWorkersThreshold {
		numWorkers = len(e.points) / minWorkersThreshold
		if numWorkers < 1 {
			numWorkers = 1
		}
	}

	if numWorkers == 1 {
		h := newTopKHeap(k)
		for _, p := range e.points {
			score, err := vectormath.Dot(qn, p.Vector)
			if err != nil {
				return nil, err
			}
			h.Offer(Result{ID: p.ID, Score: score})
		}
		return h.Sorted(), nil
	}

	chunkSize := (len(e.points) + numWorkers - 1) / numWorkers
	type partial struct {
		heap *topKHeap
		err  error
	}
	// One slot per worker, merged in worker order, so entries from earlier
	// points are offered first and ties keep insertion order.
	partials := make([]partial, numWorkers)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > len(e.points) {
			end = len(e.points)
		}
		if start >= end {
			continue
		}
		wg.Add(1)
		go func(slot int, pts []Point) {
			defer wg.Done()
			h := newTopKHeap(k)
			for _, p := range pts {
				score, err := vectormath.Dot(qn, p.Vector)
				if err != nil {
					partials[slot] = partial{err: err}
					return
				}
				h.Offer(Result{ID: p.ID, Score: score})
			}
			partials[slot] = partial{heap: h}
		}(w, e.points[start:end])
	}
	wg.Wait()

	merged := newTopKHeap(k)
	for _, pr := range partials {
		if pr.err != nil {
			return nil, pr.err
		}
		if pr.heap == nil {
			continue
		}
		for _, r := range pr.heap.Sorted() {
			merged.Offer(r)
		}
	}
	return merged.Sorted(), nil
}
