package model

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a fitted decision tree. Leaves have Feature -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // Class fractions of the training weight reaching the node
	Impurity  float64
	Weight    float64
}

// Tree is a binary CART tree stored as a flat node slice; node 0 is the root.
type Tree struct {
	Nodes []Node
}

// leaf returns the leaf reached by row.
func (t *Tree) leaf(row []float64) *Node {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if row[n.Feature] <= n.Threshold {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
	}
	return n
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	var walk func(i, d int) int
	walk = func(i, d int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return d
		}
		return max(walk(n.Left, d+1), walk(n.Right, d+1))
	}
	return walk(0, 0)
}

// Leaves returns the number of leaves.
func (t *Tree) Leaves() int {
	count := 0
	for _, n := range t.Nodes {
		if n.Feature < 0 {
			count++
		}
	}
	return count
}

type treeParams struct {
	criterion    string
	classes      int
	maxDepth     int // 0 = unlimited
	maxFeatures  int
	maxLeafNodes int // 0 = unlimited, depth-first growth
	minSplit     int
	minLeaf      int
}

type candidate struct {
	node        int
	idx         []int
	depth       int
	feature     int
	threshold   float64
	improvement float64
	left, right []int
}

// grower builds one tree on the rows of x with sample weights w.
type grower struct {
	x           [][]float64
	y           []int
	w           []float64
	p           treeParams
	rng         *rand.Rand
	tree        Tree
	importances []float64
	pending     []*candidate
}

// growTree fits a tree on the rows listed in idx. It returns the tree and the
// unnormalised impurity decrease per feature.
func growTree(x [][]float64, y []int, w []float64, idx []int, p treeParams, rng *rand.Rand) (Tree, []float64) {
	g := &grower{x: x, y: y, w: w, p: p, rng: rng, importances: make([]float64, len(x[0]))}
	g.makeNode(idx, 0)

	leaves := 1
	for len(g.pending) > 0 {
		if p.maxLeafNodes > 0 && leaves >= p.maxLeafNodes {
			break
		}
		c := g.next()
		node := &g.tree.Nodes[c.node]
		node.Feature = c.feature
		node.Threshold = c.threshold
		g.importances[c.feature] += c.improvement

		left := g.makeNode(c.left, c.depth+1)
		right := g.makeNode(c.right, c.depth+1)
		g.tree.Nodes[c.node].Left = left
		g.tree.Nodes[c.node].Right = right
		leaves++
	}
	return g.tree, g.importances
}

// next removes and returns the split to apply: the largest improvement when
// growth is leaf-limited, otherwise the most recently created node.
func (g *grower) next() *candidate {
	pick := len(g.pending) - 1
	if g.p.maxLeafNodes > 0 {
		pick = 0
		for i, c := range g.pending {
			if c.improvement > g.pending[pick].improvement {
				pick = i
			}
		}
	}
	c := g.pending[pick]
	g.pending = append(g.pending[:pick], g.pending[pick+1:]...)
	return c
}

// makeNode appends a leaf for idx and queues its best split, if any.
func (g *grower) makeNode(idx []int, depth int) int {
	dist := make([]float64, g.p.classes)
	total := 0.0
	for _, i := range idx {
		dist[g.y[i]] += g.w[i]
		total += g.w[i]
	}
	imp := impurity(g.p.criterion, dist, total)
	value := make([]float64, len(dist))
	for c, v := range dist {
		value[c] = v / total
	}

	id := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, Node{Feature: -1, Left: -1, Right: -1, Value: value, Impurity: imp, Weight: total})

	if imp <= 1e-12 || len(idx) < g.p.minSplit || len(idx) < 2*g.p.minLeaf {
		return id
	}
	if g.p.maxDepth > 0 && depth >= g.p.maxDepth {
		return id
	}
	if c := g.bestSplit(idx, total, imp); c != nil {
		c.node = id
		c.depth = depth
		g.pending = append(g.pending, c)
	}
	return id
}

// bestSplit searches up to maxFeatures non-constant features, drawn in
// random order, for the threshold with the lowest weighted child impurity.
func (g *grower) bestSplit(idx []int, total, imp float64) *candidate {
	dim := len(g.x[0])
	var best *candidate
	sorted := make([]int, len(idx))
	left := make([]float64, g.p.classes)
	right := make([]float64, g.p.classes)

	visited := 0
	for _, f := range g.rng.Perm(dim) {
		if visited >= g.p.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool { return g.x[sorted[a]][f] < g.x[sorted[b]][f] })
		lo, hi := g.x[sorted[0]][f], g.x[sorted[len(sorted)-1]][f]
		if lo == hi {
			continue
		}
		visited++

		for c := range left {
			left[c] = 0
			right[c] = 0
		}
		for _, i := range sorted {
			right[g.y[i]] += g.w[i]
		}
		wl, wr := 0.0, total

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			left[g.y[i]] += g.w[i]
			right[g.y[i]] -= g.w[i]
			wl += g.w[i]
			wr -= g.w[i]

			a, b := g.x[i][f], g.x[sorted[pos+1]][f]
			if a == b {
				continue
			}
			nl := pos + 1
			if nl < g.p.minLeaf || len(sorted)-nl < g.p.minLeaf {
				continue
			}
			children := wl*impurity(g.p.criterion, left, wl) + wr*impurity(g.p.criterion, right, wr)
			improvement := total*imp - children
			if best == nil || improvement > best.improvement {
				threshold := a + (b-a)/2
				if threshold >= b {
					threshold = a
				}
				best = &candidate{feature: f, threshold: threshold, improvement: improvement}
			}
		}
	}
	if best == nil {
		return nil
	}
	for _, i := range idx {
		if g.x[i][best.feature] <= best.threshold {
			best.left = append(best.left, i)
		} else {
			best.right = append(best.right, i)
		}
	}
	return best
}

// impurity of a weighted class distribution.
func impurity(criterion string, dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	switch criterion {
	case "entropy", "log_loss":
		h := 0.0
		for _, v := range dist {
			if v > 0 {
				p := v / total
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		s := 0.0
		for _, v := range dist {
			p := v / total
			s += p * p
		}
		return 1 - s
	}
}
