package index

import (
	"container/heap"

	"vectordb/internal/model"
	"vectordb/internal/vectormath"
)

// ballNode is one node of the tree: either a leaf holding its points
// directly, or an internal node with two children. Center and radius bound
// every point reachable from the node (spec §4.3).
type ballNode struct {
	center []float32
	radius float32
	left   *ballNode
	right  *ballNode
	leaf   []Point // non-nil only for leaves
}

func (n *ballNode) isLeaf() bool { return n.left == nil && n.right == nil }

// ballTreeIndexer is an immutable binary tree over unit-normalized vectors,
// searched with pruned best-first traversal (spec §4.3).
type ballTreeIndexer struct {
	root     *ballNode
	count    int
	dim      int
	leafSize int
	builtAt  int64
}

func buildBallTree(points []Point, leafSize int) *ballTreeIndexer {
	t := &ballTreeIndexer{
		count:    len(points),
		dim:      dimensionOf(points),
		leafSize: leafSize,
		builtAt:  model.NowMillis(),
	}
	if len(points) == 0 {
		return t
	}
	root, err := buildNode(points, leafSize)
	if err != nil {
		// Dimension uniformity is already checked by the caller (Build); any
		// error here would be a vectormath bug, not a user input problem.
		root = &ballNode{leaf: points}
	}
	t.root = root
	return t
}

func (t *ballTreeIndexer) Stats() Stats {
	return Stats{
		Kind:           model.IndexKindBallTree,
		VectorCount:    t.count,
		Dimension:      t.dim,
		BuiltAtEpochMs: t.builtAt,
	}
}

// buildNode recursively constructs a ball-tree node over points (spec §4.3
// steps 1-3).
func buildNode(points []Point, leafSize int) (*ballNode, error) {
	if len(points) <= leafSize {
		return makeLeaf(points)
	}

	vecs := vectorsOf(points)
	a, b, err := vectormath.FurthestPairSeed(vecs)
	if err != nil {
		return nil, err
	}

	var left, right []Point
	for _, p := range points {
		da, err := vectormath.Euclid(p.Vector, a)
		if err != nil {
			return nil, err
		}
		db, err := vectormath.Euclid(p.Vector, b)
		if err != nil {
			return nil, err
		}
		if da <= db {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		// Rebalance: move the point furthest from the empty side's seed
		// across, per spec §4.3 step 2.
		if len(left) == 0 && len(right) > 0 {
			left, right = rebalance(right, a)
		} else if len(right) == 0 && len(left) > 0 {
			right, left = rebalance(left, b)
		}
	}

	if len(left) == 0 || len(right) == 0 {
		// Still degenerate (e.g. every point is identical): emit a leaf.
		return makeLeaf(points)
	}

	center, err := vectormath.Centroid(vecs)
	if err != nil {
		return nil, err
	}
	radius, err := vectormath.Radius(center, vecs)
	if err != nil {
		return nil, err
	}

	leftNode, err := buildNode(left, leafSize)
	if err != nil {
		return nil, err
	}
	rightNode, err := buildNode(right, leafSize)
	if err != nil {
		return nil, err
	}

	return &ballNode{center: center, radius: radius, left: leftNode, right: rightNode}, nil
}

// rebalance moves the point furthest from seed out of side, into the
// opposite (empty) side, so neither side is left empty.
func rebalance(side []Point, seed []float32) (remaining, moved []Point) {
	var bestIdx int
	var bestDist float32 = -1
	for i, p := range side {
		d, err := vectormath.Euclid(p.Vector, seed)
		if err != nil {
			continue
		}
		if d > bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	moved = []Point{side[bestIdx]}
	remaining = append(append([]Point(nil), side[:bestIdx]...), side[bestIdx+1:]...)
	return remaining, moved
}

func makeLeaf(points []Point) (*ballNode, error) {
	vecs := vectorsOf(points)
	center, err := vectormath.Centroid(vecs)
	if err != nil {
		return nil, err
	}
	radius, err := vectormath.Radius(center, vecs)
	if err != nil {
		return nil, err
	}
	return &ballNode{center: center, radius: radius, leaf: append([]Point(nil), points...)}, nil
}

func vectorsOf(points []Point) [][]float32 {
	out := make([][]float32, len(points))
	for i, p := range points {
		out[i] = p.Vector
	}
	return out
}

// nodeQueueEntry is one pending node in the best-first search frontier,
// ordered by its similarity upper bound.
type nodeQueueEntry struct {
	node *ballNode
	ub   float32
}

// nodeMaxHeap is a max-heap of nodeQueueEntry ordered by ub, so the node
// with the best achievable similarity is always popped first (spec §4.3
// step 2-3).
type nodeMaxHeap []nodeQueueEntry

func (h nodeMaxHeap) Len() int            { return len(h) }
func (h nodeMaxHeap) Less(i, j int) bool  { return h[i].ub > h[j].ub }
func (h nodeMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeMaxHeap) Push(x interface{}) { *h = append(*h, x.(nodeQueueEntry)) }
func (h *nodeMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (t *ballTreeIndexer) Search(q []float32, k int) ([]Result, error) {
	if t.root == nil || k <= 0 {
		return []Result{}, nil
	}
	qn, err := vectormath.Normalize(q)
	if err != nil {
		return nil, err
	}
	if len(qn) != t.dim {
		return nil, dimMismatch(len(qn), t.dim)
	}

	best := newTopKHeap(k)
	pq := &nodeMaxHeap{}
	rootUB, err := upperBound(qn, t.root)
	if err != nil {
		return nil, err
	}
	heap.Push(pq, nodeQueueEntry{node: t.root, ub: rootUB})

	for pq.Len() > 0 {
		top := heap.Pop(pq).(nodeQueueEntry)
		if best.Full() && top.ub <= best.MinScore() {
			break
		}
		if top.node.isLeaf() {
			for _, p := range top.node.leaf {
				score, err := vectormath.Dot(qn, p.Vector)
				if err != nil {
					return nil, err
				}
				best.Offer(Result{ID: p.ID, Score: score})
			}
			continue
		}
		leftUB, err := upperBound(qn, top.node.left)
		if err != nil {
			return nil, err
		}
		rightUB, err := upperBound(qn, top.node.right)
		if err != nil {
			return nil, err
		}
		heap.Push(pq, nodeQueueEntry{node: top.node.left, ub: leftUB})
		heap.Push(pq, nodeQueueEntry{node: top.node.right, ub: rightUB})
	}

	return best.Sorted(), nil
}

// upperBound computes ub(node) = dot(q, node.center) + node.radius, the
// admissible bound on the similarity any unit vector inside node's ball can
// achieve (spec §4.3 step 2).
func upperBound(q []float32, n *ballNode) (float32, error) {
	d, err := vectormath.Dot(q, n.center)
	if err != nil {
		return 0, err
	}
	return d + n.radius, nil
}
