// Package tstest builds deterministic tree sequences for tests: hand-written
// fixtures and random sequences produced by subtree-prune-and-regraft moves.
package tstest

import (
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// Three builds the single tree ((0,1):2, 2):5 over [0, 1). Node 3 is the
// MRCA of 0 and 1; node 4 is the root.
func Three() treeseq.Tables {
	return treeseq.Tables{
		SequenceLength: 1,
		Nodes: []treeseq.Node{
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 2},
			{Time: 5},
		},
		Edges: []treeseq.Edge{
			{Left: 0, Right: 1, Parent: 3, Children: []int{0, 1}},
			{Left: 0, Right: 1, Parent: 4, Children: []int{2, 3}},
		},
	}
}

// Star builds a single polytomy (0,1,2):3 over [0, 1).
func Star() treeseq.Tables {
	return treeseq.Tables{
		SequenceLength: 1,
		Nodes: []treeseq.Node{
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 3},
		},
		Edges: []treeseq.Edge{
			{Left: 0, Right: 1, Parent: 3, Children: []int{0, 1, 2}},
		},
	}
}

// TwoTrees builds four samples whose topology changes at position 4 of 10:
// ((0,1):1,(2,3):2):4 on [0, 4) and ((0,2):1.5,(1,3):2):4 on [4, 10). Node 7
// (the root) and node 5 keep their ids across the breakpoint with new children.
func TwoTrees() treeseq.Tables {
	return treeseq.Tables{
		SequenceLength: 10,
		Nodes: []treeseq.Node{
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 1},
			{Time: 2},
			{Time: 1.5},
			{Time: 4},
		},
		Edges: []treeseq.Edge{
			{Left: 0, Right: 4, Parent: 4, Children: []int{0, 1}},
			{Left: 0, Right: 4, Parent: 5, Children: []int{2, 3}},
			{Left: 0, Right: 4, Parent: 7, Children: []int{4, 5}},
			{Left: 4, Right: 10, Parent: 6, Children: []int{0, 2}},
			{Left: 4, Right: 10, Parent: 5, Children: []int{1, 3}},
			{Left: 4, Right: 10, Parent: 7, Children: []int{5, 6}},
		},
		Mutations: []treeseq.Mutation{
			{Position: 1, Node: 0},
			{Position: 2, Node: 5},
			{Position: 3, Node: 7},
			{Position: 6, Node: 6},
			{Position: 8, Node: 3},
		},
	}
}

// UnaryChain builds a tree over [0, 2) in which sample 0 reaches the root
// through the unary node 3, and a gap [2, 3) with no edges at all.
func UnaryChain() treeseq.Tables {
	return treeseq.Tables{
		SequenceLength: 3,
		Nodes: []treeseq.Node{
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 0, Sample: true},
			{Time: 1},
			{Time: 2},
			{Time: 3},
		},
		Edges: []treeseq.Edge{
			{Left: 0, Right: 2, Parent: 3, Children: []int{0}},
			{Left: 0, Right: 2, Parent: 4, Children: []int{1, 2}},
			{Left: 0, Right: 2, Parent: 5, Children: []int{3, 4}},
		},
	}
}

// Options tune Random.
type Options struct {
	Samples        int
	Trees          int
	SequenceLength float64
	// PolytomyRate is the probability that a move regrafts onto an existing
	// internal node instead of creating a new one.
	PolytomyRate float64
	// Mutations is the number of mutations placed on each tree.
	Mutations int
	Groups    int
}

type builder struct {
	rng      *rand.Rand
	nodes    []treeseq.Node
	parent   []int
	children map[int][]int
	open     map[int]float64
	edges    []treeseq.Edge
	muts     []treeseq.Mutation
}

// Random builds a tree sequence by applying one random SPR move per breakpoint
// to an initial random binary tree. Records of parents whose child sets change
// are closed and reopened, so node ids are reused across trees.
func Random(seed uint64, opts Options) treeseq.Tables {
	if opts.SequenceLength <= 0 {
		opts.SequenceLength = 1
	}

	b := &builder{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		children: make(map[int][]int),
		open:     make(map[int]float64),
	}

	lineages := make([]int, opts.Samples)
	for i := range opts.Samples {
		lineages[i] = b.addNode(0, true)
	}

	now := 0.0
	for len(lineages) > 1 {
		now += b.rng.ExpFloat64()
		i := b.rng.IntN(len(lineages))
		a := lineages[i]
		lineages = slices.Delete(lineages, i, i+1)
		j := b.rng.IntN(len(lineages))
		c := lineages[j]
		p := b.addNode(now, false)
		b.link(p, a)
		b.link(p, c)
		lineages[j] = p
	}

	for p := range b.children {
		b.open[p] = 0
	}

	breaks := make([]float64, 0, opts.Trees)
	for i := 1; i < opts.Trees; i++ {
		breaks = append(breaks, opts.SequenceLength*float64(i)/float64(opts.Trees))
	}

	left := 0.0

	for _, x := range breaks {
		b.mutate(left, x, opts.Mutations)
		b.move(x, opts.PolytomyRate)
		left = x
	}

	b.mutate(left, opts.SequenceLength, opts.Mutations)

	for _, p := range slices.Sorted(maps.Keys(b.open)) {
		b.close(p, opts.SequenceLength)
	}

	tables := treeseq.Tables{
		SequenceLength: opts.SequenceLength,
		Nodes:          b.nodes,
		Edges:          b.edges,
		Mutations:      b.muts,
	}

	if opts.Groups > 0 {
		tables.Groups = make([]treeseq.SampleGroup, opts.Groups)
		for i := range opts.Samples {
			g := &tables.Groups[i%opts.Groups]
			g.Leaves = append(g.Leaves, i)
		}

		for i := range tables.Groups {
			tables.Groups[i].Name = string(rune('a' + i))
		}
	}

	return tables
}

// LeafGroups returns the leaves of each group of tables, in order.
func LeafGroups(tables treeseq.Tables) [][]int {
	groups := make([][]int, len(tables.Groups))
	for i, g := range tables.Groups {
		groups[i] = slices.Clone(g.Leaves)
	}

	return groups
}

func (b *builder) addNode(t float64, sample bool) int {
	b.nodes = append(b.nodes, treeseq.Node{Time: t, Sample: sample})
	b.parent = append(b.parent, treeseq.NoNode)

	return len(b.nodes) - 1
}

func (b *builder) link(p, c int) {
	b.parent[c] = p
	b.children[p] = append(b.children[p], c)
}

func (b *builder) unlink(c int) {
	p := b.parent[c]
	b.parent[c] = treeseq.NoNode
	b.children[p] = slices.DeleteFunc(b.children[p], func(v int) bool { return v == c })

	if len(b.children[p]) == 0 {
		delete(b.children, p)
	}
}

func (b *builder) close(p int, x float64) {
	start, ok := b.open[p]
	if !ok {
		return
	}

	delete(b.open, p)

	if start >= x {
		return
	}

	kids := slices.Clone(b.children[p])
	slices.Sort(kids)
	b.edges = append(b.edges, treeseq.Edge{Left: start, Right: x, Parent: p, Children: kids})
}

// root returns the root of the tree that remains once c's subtree is pruned.
func (b *builder) root(c int) int {
	for u := range b.nodes {
		if !b.nodes[u].Sample || b.inSubtree(u, c) {
			continue
		}

		for b.parent[u] != treeseq.NoNode {
			u = b.parent[u]
		}

		return u
	}

	return treeseq.NoNode
}

func (b *builder) inSubtree(u, top int) bool {
	for ; u != treeseq.NoNode; u = b.parent[u] {
		if u == top {
			return true
		}
	}

	return false
}

// move prunes a random non-root node and regrafts it elsewhere at position x.
func (b *builder) move(x, polytomyRate float64) {
	var candidates []int

	for u := range b.nodes {
		if b.parent[u] != treeseq.NoNode {
			candidates = append(candidates, u)
		}
	}

	if len(candidates) < 2 {
		return
	}

	c := candidates[b.rng.IntN(len(candidates))]
	p := b.parent[c]

	changed := map[int]bool{p: true}
	b.close(p, x)

	b.unlink(c)

	// A unary parent is removed and its remaining child spliced upward.
	if kids := b.children[p]; len(kids) == 1 {
		s := kids[0]
		pp := b.parent[p]
		b.unlink(s)

		if pp != treeseq.NoNode {
			b.close(pp, x)
			changed[pp] = true
			b.unlink(p)
			b.link(pp, s)
		}
	}

	target := b.pickTarget(c)
	if target == treeseq.NoNode {
		b.reopen(changed, x)

		return
	}

	if b.rng.Float64() < polytomyRate && len(b.children[target]) > 0 && b.nodes[target].Time > b.nodes[c].Time {
		b.close(target, x)
		changed[target] = true
		b.link(target, c)
		b.reopen(changed, x)

		return
	}

	lo := max(b.nodes[c].Time, b.nodes[target].Time)
	tp := b.parent[target]

	var t float64
	if tp == treeseq.NoNode {
		t = lo + b.rng.ExpFloat64()
	} else {
		b.close(tp, x)
		changed[tp] = true
		t = lo + (b.nodes[tp].Time-lo)*(0.05+0.9*b.rng.Float64())
	}

	n := b.addNode(t, false)

	if tp != treeseq.NoNode {
		b.unlink(target)
		b.link(tp, n)
	}

	b.link(n, target)
	b.link(n, c)
	changed[n] = true
	b.reopen(changed, x)
}

// pickTarget chooses a node in the tree outside c's subtree under which c can
// be regrafted without violating time order.
func (b *builder) pickTarget(c int) int {
	top := b.root(c)
	if top == treeseq.NoNode {
		return treeseq.NoNode
	}

	var options []int

	for u := range b.nodes {
		if !b.inSubtree(u, top) {
			continue
		}

		if tp := b.parent[u]; tp != treeseq.NoNode && b.nodes[tp].Time <= b.nodes[c].Time {
			continue
		}

		options = append(options, u)
	}

	if len(options) == 0 {
		return treeseq.NoNode
	}

	return options[b.rng.IntN(len(options))]
}

func (b *builder) reopen(changed map[int]bool, x float64) {
	for _, u := range slices.Sorted(maps.Keys(changed)) {
		if len(b.children[u]) > 0 {
			b.open[u] = x
		}
	}
}

func (b *builder) mutate(left, right float64, count int) {
	var carriers []int

	for u := range b.nodes {
		if b.parent[u] != treeseq.NoNode {
			carriers = append(carriers, u)
		}
	}

	if len(carriers) == 0 {
		return
	}

	for range count {
		pos := left + (right-left)*b.rng.Float64()
		b.muts = append(b.muts, treeseq.Mutation{Position: pos, Node: carriers[b.rng.IntN(len(carriers))]})
	}
}
