package treeseq

import (
	"iter"
	"sort"
)

// Tree is the snapshot of a tree sequence over one interval. A Tree yielded by
// Trees is reused and only valid until the iterator advances.
type Tree struct {
	ts        *TreeSequence
	index     int
	left      float64
	right     float64
	parent    []int
	children  []int // number of children per node.
	mutations []Mutation
}

func newTree(ts *TreeSequence) *Tree {
	parent := make([]int, len(ts.nodes))
	for i := range parent {
		parent[i] = NoNode
	}

	return &Tree{
		ts:       ts,
		index:    -1,
		parent:   parent,
		children: make([]int, len(ts.nodes)),
	}
}

func (t *Tree) apply(ev DiffEvent) {
	for _, rec := range ev.Out {
		for _, c := range rec.Children {
			t.parent[c] = NoNode
		}

		t.children[rec.Parent] -= len(rec.Children)
	}

	for _, rec := range ev.In {
		for _, c := range rec.Children {
			t.parent[c] = rec.Parent
		}

		t.children[rec.Parent] += len(rec.Children)
	}

	t.index++
	t.left = ev.Left
	t.right = ev.Right

	muts := t.ts.mutations
	lo := sort.Search(len(muts), func(i int) bool { return muts[i].Position >= ev.Left })
	hi := sort.Search(len(muts), func(i int) bool { return muts[i].Position >= ev.Right })
	t.mutations = muts[lo:hi]
}

// Trees yields every tree of the sequence in genomic order.
func (ts *TreeSequence) Trees() iter.Seq[*Tree] {
	return func(yield func(*Tree) bool) {
		tree := newTree(ts)

		for ev := range ts.Diffs() {
			tree.apply(ev)

			if !yield(tree) {
				return
			}
		}
	}
}

// Index returns the position of the tree in the sequence, starting at 0.
func (t *Tree) Index() int { return t.index }

// Interval returns the genomic interval [left, right) covered by the tree.
func (t *Tree) Interval() (left, right float64) { return t.left, t.right }

// Length returns the genomic span of the tree.
func (t *Tree) Length() float64 { return t.right - t.left }

// NumNodes returns the size of the node table.
func (t *Tree) NumNodes() int { return len(t.parent) }

// Parent returns the parent of u, or NoNode.
func (t *Tree) Parent(u int) int { return t.parent[u] }

// Time returns the time of node u.
func (t *Tree) Time(u int) float64 { return t.ts.nodes[u].Time }

// BranchLength returns the length of the branch above u; zero for roots.
func (t *Tree) BranchLength(u int) float64 {
	p := t.parent[u]
	if p == NoNode {
		return 0
	}

	return t.ts.nodes[p].Time - t.ts.nodes[u].Time
}

// Contains reports whether u is part of this tree: a sample, or a node with a
// parent or children.
func (t *Tree) Contains(u int) bool {
	if u < 0 || u >= len(t.parent) {
		return false
	}

	return t.ts.nodes[u].Sample || t.parent[u] != NoNode || t.children[u] > 0
}

// Nodes returns the ids of all nodes in the tree in ascending order.
func (t *Tree) Nodes() []int {
	var nodes []int

	for u := range t.parent {
		if t.Contains(u) {
			nodes = append(nodes, u)
		}
	}

	return nodes
}

// Roots returns the nodes of the tree that have no parent.
func (t *Tree) Roots() []int {
	var roots []int

	for u := range t.parent {
		if t.parent[u] == NoNode && t.Contains(u) {
			roots = append(roots, u)
		}
	}

	return roots
}

// Mutations returns the mutations whose positions fall in the tree's interval.
func (t *Tree) Mutations() []Mutation { return t.mutations }

// MRCA returns the most recent common ancestor of a and b, or NoNode if they
// are not in the same tree.
func (t *Tree) MRCA(a, b int) int {
	if !t.Contains(a) || !t.Contains(b) {
		return NoNode
	}

	da, db := t.depth(a), t.depth(b)

	for da > db {
		a = t.parent[a]
		da--
	}

	for db > da {
		b = t.parent[b]
		db--
	}

	for a != b {
		a = t.parent[a]
		b = t.parent[b]

		if a == NoNode || b == NoNode {
			return NoNode
		}
	}

	return a
}

func (t *Tree) depth(u int) int {
	d := 0

	for p := t.parent[u]; p != NoNode; p = t.parent[p] {
		d++
	}

	return d
}
