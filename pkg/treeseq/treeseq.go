// Package treeseq provides an in-memory tree sequence: node, edge and mutation
// tables over a genome of fixed length, the edge-diff stream that moves from one
// tree to the next, and single-tree snapshots replayed from that stream.
//
// Edges are coalescence records: each one carries the complete, ordered child set
// of its parent over a half-open genomic interval [Left, Right). Records of the
// same parent never overlap, and a node has at most one parent at any position.
package treeseq

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// NoNode marks the absence of a node (no parent, no common ancestor).
const NoNode = -1

// Sentinel validation errors.
var (
	ErrInvalidSequenceLength = errors.New("sequence length must be positive")
	ErrNegativeTime          = errors.New("node time must be non-negative")
	ErrNodeOutOfRange        = errors.New("node id out of range")
	ErrBadInterval           = errors.New("edge interval must satisfy 0 <= left < right <= sequence length")
	ErrEmptyChildren         = errors.New("edge has no children")
	ErrDuplicateChild        = errors.New("edge lists a child more than once")
	ErrTimeOrder             = errors.New("parent must be strictly older than child")
	ErrOverlappingRecords    = errors.New("records of the same parent overlap")
	ErrMultipleParents       = errors.New("child has more than one parent at a position")
	ErrBadMutation           = errors.New("mutation position must lie in [0, sequence length)")
	ErrUnknownGroup          = errors.New("unknown sample group")
)

// Node is an ancestry event or a sample. Its id is its index in the node table.
type Node struct {
	Time   float64
	Sample bool
}

// Edge is a coalescence record: Parent has exactly Children over [Left, Right).
type Edge struct {
	Left     float64
	Right    float64
	Parent   int
	Children []int
}

// Mutation is a mutation placed on the branch above Node at Position.
type Mutation struct {
	Position float64
	Node     int
}

// SampleGroup is a named set of leaves.
type SampleGroup struct {
	Name   string
	Leaves []int
}

// Tables is the raw input for New.
type Tables struct {
	SequenceLength float64
	Nodes          []Node
	Edges          []Edge
	Mutations      []Mutation
	Groups         []SampleGroup
}

// TreeSequence is a validated, immutable set of tables.
type TreeSequence struct {
	sequenceLength float64
	nodes          []Node
	edges          []Edge
	mutations      []Mutation
	groups         []SampleGroup

	// insertion and removal orders over edges, computed once.
	inOrder  []int
	outOrder []int
}

// New validates tables and builds a TreeSequence. The tables are copied.
func New(tables Tables) (*TreeSequence, error) {
	ts := &TreeSequence{
		sequenceLength: tables.SequenceLength,
		nodes:          slices.Clone(tables.Nodes),
		edges:          make([]Edge, len(tables.Edges)),
		mutations:      slices.Clone(tables.Mutations),
		groups:         make([]SampleGroup, len(tables.Groups)),
	}

	for i, e := range tables.Edges {
		e.Children = slices.Clone(e.Children)
		ts.edges[i] = e
	}

	for i, g := range tables.Groups {
		ts.groups[i] = SampleGroup{Name: g.Name, Leaves: slices.Clone(g.Leaves)}
	}

	slices.SortStableFunc(ts.mutations, func(a, b Mutation) int {
		return cmp.Compare(a.Position, b.Position)
	})

	err := ts.validate()
	if err != nil {
		return nil, err
	}

	ts.buildOrders()

	err = ts.checkSingleParent()
	if err != nil {
		return nil, err
	}

	return ts, nil
}

func (ts *TreeSequence) validate() error {
	if !(ts.sequenceLength > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSequenceLength, ts.sequenceLength)
	}

	for id, n := range ts.nodes {
		if n.Time < 0 {
			return fmt.Errorf("node %d: %w: %v", id, ErrNegativeTime, n.Time)
		}
	}

	for i := range ts.edges {
		err := ts.validateEdge(&ts.edges[i])
		if err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}
	}

	err := ts.checkRecordOverlap()
	if err != nil {
		return err
	}

	for i, m := range ts.mutations {
		if m.Position < 0 || m.Position >= ts.sequenceLength {
			return fmt.Errorf("mutation %d: %w: %v", i, ErrBadMutation, m.Position)
		}

		if !ts.inRange(m.Node) {
			return fmt.Errorf("mutation %d: %w: %d", i, ErrNodeOutOfRange, m.Node)
		}
	}

	for _, g := range ts.groups {
		for _, leaf := range g.Leaves {
			if !ts.inRange(leaf) {
				return fmt.Errorf("group %q: %w: %d", g.Name, ErrNodeOutOfRange, leaf)
			}
		}
	}

	return nil
}

func (ts *TreeSequence) validateEdge(e *Edge) error {
	if e.Left < 0 || e.Left >= e.Right || e.Right > ts.sequenceLength {
		return fmt.Errorf("%w: [%v, %v)", ErrBadInterval, e.Left, e.Right)
	}

	if !ts.inRange(e.Parent) {
		return fmt.Errorf("parent: %w: %d", ErrNodeOutOfRange, e.Parent)
	}

	if len(e.Children) == 0 {
		return ErrEmptyChildren
	}

	seen := make(map[int]struct{}, len(e.Children))

	for _, c := range e.Children {
		if !ts.inRange(c) {
			return fmt.Errorf("child: %w: %d", ErrNodeOutOfRange, c)
		}

		if _, dup := seen[c]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateChild, c)
		}

		seen[c] = struct{}{}

		if ts.nodes[e.Parent].Time <= ts.nodes[c].Time {
			return fmt.Errorf("%w: parent %d (%v), child %d (%v)",
				ErrTimeOrder, e.Parent, ts.nodes[e.Parent].Time, c, ts.nodes[c].Time)
		}
	}

	return nil
}

func (ts *TreeSequence) checkRecordOverlap() error {
	byParent := make([]int, len(ts.edges))
	for i := range byParent {
		byParent[i] = i
	}

	slices.SortFunc(byParent, func(a, b int) int {
		ea, eb := &ts.edges[a], &ts.edges[b]

		return cmp.Or(cmp.Compare(ea.Parent, eb.Parent), cmp.Compare(ea.Left, eb.Left))
	})

	for i := 1; i < len(byParent); i++ {
		prev, cur := &ts.edges[byParent[i-1]], &ts.edges[byParent[i]]
		if prev.Parent == cur.Parent && cur.Left < prev.Right {
			return fmt.Errorf("%w: parent %d at [%v, %v) and [%v, %v)",
				ErrOverlappingRecords, cur.Parent, prev.Left, prev.Right, cur.Left, cur.Right)
		}
	}

	return nil
}

// buildOrders sorts edges for insertion by (left, parent time, parent) and for
// removal by (right, -parent time, parent).
func (ts *TreeSequence) buildOrders() {
	n := len(ts.edges)
	ts.inOrder = make([]int, n)
	ts.outOrder = make([]int, n)

	for i := range n {
		ts.inOrder[i] = i
		ts.outOrder[i] = i
	}

	slices.SortStableFunc(ts.inOrder, func(a, b int) int {
		ea, eb := &ts.edges[a], &ts.edges[b]

		return cmp.Or(
			cmp.Compare(ea.Left, eb.Left),
			cmp.Compare(ts.nodes[ea.Parent].Time, ts.nodes[eb.Parent].Time),
			cmp.Compare(ea.Parent, eb.Parent),
		)
	})

	slices.SortStableFunc(ts.outOrder, func(a, b int) int {
		ea, eb := &ts.edges[a], &ts.edges[b]

		return cmp.Or(
			cmp.Compare(ea.Right, eb.Right),
			cmp.Compare(ts.nodes[eb.Parent].Time, ts.nodes[ea.Parent].Time),
			cmp.Compare(ea.Parent, eb.Parent),
		)
	})
}

// checkSingleParent replays the diff stream and rejects any child that would be
// attached while it still has a parent.
func (ts *TreeSequence) checkSingleParent() error {
	parent := make([]int, len(ts.nodes))
	for i := range parent {
		parent[i] = NoNode
	}

	for ev := range ts.Diffs() {
		for _, rec := range ev.Out {
			for _, c := range rec.Children {
				parent[c] = NoNode
			}
		}

		for _, rec := range ev.In {
			for _, c := range rec.Children {
				if parent[c] != NoNode {
					return fmt.Errorf("%w: node %d under %d and %d at %v",
						ErrMultipleParents, c, parent[c], rec.Parent, ev.Left)
				}

				parent[c] = rec.Parent
			}
		}
	}

	return nil
}

func (ts *TreeSequence) inRange(u int) bool {
	return u >= 0 && u < len(ts.nodes)
}

// SequenceLength returns the genome length.
func (ts *TreeSequence) SequenceLength() float64 { return ts.sequenceLength }

// NumNodes returns the size of the node table.
func (ts *TreeSequence) NumNodes() int { return len(ts.nodes) }

// NumEdges returns the size of the edge table.
func (ts *TreeSequence) NumEdges() int { return len(ts.edges) }

// NodeTime returns the time of node u.
func (ts *TreeSequence) NodeTime(u int) float64 { return ts.nodes[u].Time }

// HasNode reports whether u is a valid node id.
func (ts *TreeSequence) HasNode(u int) bool { return ts.inRange(u) }

// NodeTimes returns a copy of all node times indexed by id.
func (ts *TreeSequence) NodeTimes() []float64 {
	times := make([]float64, len(ts.nodes))
	for i, n := range ts.nodes {
		times[i] = n.Time
	}

	return times
}

// IsSample reports whether u is a sample node.
func (ts *TreeSequence) IsSample(u int) bool {
	return ts.inRange(u) && ts.nodes[u].Sample
}

// Samples returns the ids of all sample nodes in ascending order.
func (ts *TreeSequence) Samples() []int {
	var samples []int

	for id, n := range ts.nodes {
		if n.Sample {
			samples = append(samples, id)
		}
	}

	return samples
}

// Nodes returns a copy of the node table.
func (ts *TreeSequence) Nodes() []Node { return slices.Clone(ts.nodes) }

// Edges returns the edge table. Callers must not modify it.
func (ts *TreeSequence) Edges() []Edge { return ts.edges }

// Mutations returns the mutation table sorted by position. Callers must not modify it.
func (ts *TreeSequence) Mutations() []Mutation { return ts.mutations }

// Groups returns the named sample groups. Callers must not modify them.
func (ts *TreeSequence) Groups() []SampleGroup { return ts.groups }

// Group returns the leaves of the named sample group.
func (ts *TreeSequence) Group(name string) ([]int, error) {
	for _, g := range ts.groups {
		if g.Name == name {
			return slices.Clone(g.Leaves), nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
}

// NumTrees returns the number of distinct trees (diff events).
func (ts *TreeSequence) NumTrees() int {
	count := 0

	for range ts.Diffs() {
		count++
	}

	return count
}

// Tables returns a copy of the underlying tables.
func (ts *TreeSequence) Tables() Tables {
	edges := make([]Edge, len(ts.edges))
	for i, e := range ts.edges {
		e.Children = slices.Clone(e.Children)
		edges[i] = e
	}

	groups := make([]SampleGroup, len(ts.groups))
	for i, g := range ts.groups {
		groups[i] = SampleGroup{Name: g.Name, Leaves: slices.Clone(g.Leaves)}
	}

	return Tables{
		SequenceLength: ts.sequenceLength,
		Nodes:          slices.Clone(ts.nodes),
		Edges:          edges,
		Mutations:      slices.Clone(ts.mutations),
		Groups:         groups,
	}
}
