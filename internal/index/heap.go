package index

import "container/heap"

// scoredEntry is one candidate in a bounded top-k min-heap. order records
// insertion sequence so ties can be broken deterministically: on a tie the
// earlier-inserted entry outranks the later one, both when evicting (the
// later entry is evicted first) and in the final sort.
type scoredEntry struct {
	id    Result
	order int
}

// topKHeap is a bounded min-heap of size k: the root is always the current
// worst-scoring candidate, so offering a new candidate is O(log k).
type topKHeap struct {
	items []scoredEntry
	k     int
	seq   int
}

func newTopKHeap(k int) *topKHeap {
	return &topKHeap{k: k}
}

func (h *topKHeap) Len() int { return len(h.items) }
func (h *topKHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.id.Score != b.id.Score {
		return a.id.Score < b.id.Score
	}
	// Tie: the later-inserted entry is "smaller" (evicted first).
	return a.order > b.order
}
func (h *topKHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topKHeap) Push(x interface{}) {
	h.items = append(h.items, x.(scoredEntry))
}
func (h *topKHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Offer inserts a candidate, evicting the current worst if the heap is
// already at capacity k and the new candidate is better.
func (h *topKHeap) Offer(id Result) {
	if h.k <= 0 {
		return
	}
	entry := scoredEntry{id: id, order: h.seq}
	h.seq++
	if len(h.items) < h.k {
		heap.Push(h, entry)
		return
	}
	// A tie with the current worst loses to it under insertion-order
	// tie-breaking (the existing entry was inserted earlier), so only a
	// strictly-better candidate replaces the root.
	if entry.id.Score > h.items[0].id.Score {
		h.items[0] = entry
		heap.Fix(h, 0)
	}
}

// MinScore returns the score of the current worst candidate. Only valid
// when the heap is at capacity (Len() == k); callers use it to prune.
func (h *topKHeap) MinScore() float32 {
	if len(h.items) == 0 {
		return 0
	}
	return h.items[0].id.Score
}

// Full reports whether the heap holds k candidates.
func (h *topKHeap) Full() bool { return len(h.items) >= h.k }

// Sorted drains the heap into a slice ordered by score descending, ties
// broken by insertion order (earlier first).
func (h *topKHeap) Sorted() []Result {
	items := append([]scoredEntry(nil), h.items...)
	// Sort descending by score, ascending by order on ties.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			a, b := items[j-1], items[j]
			swap := a.id.Score < b.id.Score || (a.id.Score == b.id.Score && a.order > b.order)
			if !swap {
				break
			}
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
	out := make([]Result, len(items))
	for i, e := range items {
		out[i] = e.id
	}
	return out
}
