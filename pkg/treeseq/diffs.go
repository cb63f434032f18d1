package treeseq

import (
	"iter"
	"slices"
)

// EdgeRecord is one record leaving or entering effect at a breakpoint.
type EdgeRecord struct {
	Parent   int
	Children []int
}

// DiffEvent describes one maximal interval over which the tree is constant:
// the records that stop applying at Left (Out) and the records that start
// applying at Left (In).
type DiffEvent struct {
	Left  float64
	Right float64
	Out   []EdgeRecord
	In    []EdgeRecord
}

// Length returns the genomic span of the event.
func (ev DiffEvent) Length() float64 {
	return ev.Right - ev.Left
}

// Diffs yields one event per tree in left-to-right order. The interval lengths
// of all events sum to the sequence length. Out records are ordered by
// decreasing parent time, In records by increasing parent time, so a parent is
// always detached from above before its own record leaves.
//
// The Children slices alias the edge table and must not be modified.
func (ts *TreeSequence) Diffs() iter.Seq[DiffEvent] {
	return func(yield func(DiffEvent) bool) {
		numEdges := len(ts.edges)
		inIdx, outIdx := 0, 0
		left := 0.0

		for left < ts.sequenceLength {
			var out, in []EdgeRecord

			for outIdx < numEdges && ts.edges[ts.outOrder[outIdx]].Right == left {
				e := &ts.edges[ts.outOrder[outIdx]]
				out = append(out, EdgeRecord{Parent: e.Parent, Children: e.Children})
				outIdx++
			}

			for inIdx < numEdges && ts.edges[ts.inOrder[inIdx]].Left == left {
				e := &ts.edges[ts.inOrder[inIdx]]
				in = append(in, EdgeRecord{Parent: e.Parent, Children: e.Children})
				inIdx++
			}

			right := ts.sequenceLength
			if inIdx < numEdges {
				right = min(right, ts.edges[ts.inOrder[inIdx]].Left)
			}

			if outIdx < numEdges {
				right = min(right, ts.edges[ts.outOrder[outIdx]].Right)
			}

			if !yield(DiffEvent{Left: left, Right: right, Out: out, In: in}) {
				return
			}

			left = right
		}
	}
}

// CloneEvent returns a deep copy of ev that is safe to retain and modify.
func CloneEvent(ev DiffEvent) DiffEvent {
	cp := DiffEvent{Left: ev.Left, Right: ev.Right}

	for _, rec := range ev.Out {
		cp.Out = append(cp.Out, EdgeRecord{Parent: rec.Parent, Children: slices.Clone(rec.Children)})
	}

	for _, rec := range ev.In {
		cp.In = append(cp.In, EdgeRecord{Parent: rec.Parent, Children: slices.Clone(rec.Children)})
	}

	return cp
}
