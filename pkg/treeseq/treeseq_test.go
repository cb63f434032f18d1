package treeseq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstats/internal/tstest"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

func TestNew_RejectsInvalidTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*treeseq.Tables)
		want   error
	}{
		{
			name:   "zero_length",
			mutate: func(tb *treeseq.Tables) { tb.SequenceLength = 0 },
			want:   treeseq.ErrInvalidSequenceLength,
		},
		{
			name:   "negative_time",
			mutate: func(tb *treeseq.Tables) { tb.Nodes[0].Time = -1 },
			want:   treeseq.ErrNegativeTime,
		},
		{
			name:   "parent_out_of_range",
			mutate: func(tb *treeseq.Tables) { tb.Edges[0].Parent = 99 },
			want:   treeseq.ErrNodeOutOfRange,
		},
		{
			name:   "child_out_of_range",
			mutate: func(tb *treeseq.Tables) { tb.Edges[0].Children = []int{0, -2} },
			want:   treeseq.ErrNodeOutOfRange,
		},
		{
			name:   "empty_interval",
			mutate: func(tb *treeseq.Tables) { tb.Edges[0].Right = tb.Edges[0].Left },
			want:   treeseq.ErrBadInterval,
		},
		{
			name:   "interval_past_end",
			mutate: func(tb *treeseq.Tables) { tb.Edges[0].Right = 2 },
			want:   treeseq.ErrBadInterval,
		},
		{
			name:   "no_children",
			mutate: func(tb *treeseq.Tables) { tb.Edges[0].Children = nil },
			want:   treeseq.ErrEmptyChildren,
		},
		{
			name:   "duplicate_child",
			mutate: func(tb *treeseq.Tables) { tb.Edges[0].Children = []int{0, 0} },
			want:   treeseq.ErrDuplicateChild,
		},
		{
			name:   "parent_younger_than_child",
			mutate: func(tb *treeseq.Tables) { tb.Nodes[3].Time = 6 },
			want:   treeseq.ErrTimeOrder,
		},
		{
			name: "overlapping_records",
			mutate: func(tb *treeseq.Tables) {
				tb.Edges = append(tb.Edges, treeseq.Edge{Left: 0.5, Right: 1, Parent: 3, Children: []int{2}})
			},
			want: treeseq.ErrOverlappingRecords,
		},
		{
			name: "two_parents",
			mutate: func(tb *treeseq.Tables) {
				tb.Edges[1].Children = []int{0, 2, 3}
			},
			want: treeseq.ErrMultipleParents,
		},
		{
			name: "mutation_past_end",
			mutate: func(tb *treeseq.Tables) {
				tb.Mutations = []treeseq.Mutation{{Position: 1, Node: 0}}
			},
			want: treeseq.ErrBadMutation,
		},
		{
			name: "group_leaf_out_of_range",
			mutate: func(tb *treeseq.Tables) {
				tb.Groups = []treeseq.SampleGroup{{Name: "g", Leaves: []int{7}}}
			},
			want: treeseq.ErrNodeOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tables := tstest.Three()
			tt.mutate(&tables)

			_, err := treeseq.New(tables)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_CopiesTables(t *testing.T) {
	t.Parallel()

	tables := tstest.Three()
	ts, err := treeseq.New(tables)
	require.NoError(t, err)

	tables.Edges[0].Children[0] = 2
	tables.Nodes[0].Time = 9

	assert.Equal(t, []int{0, 1}, ts.Edges()[0].Children)
	assert.InDelta(t, 0, ts.NodeTime(0), 1e-12)
}

func TestTreeSequence_Accessors(t *testing.T) {
	t.Parallel()

	tables := tstest.TwoTrees()
	tables.Groups = []treeseq.SampleGroup{{Name: "left", Leaves: []int{0, 1}}}

	ts, err := treeseq.New(tables)
	require.NoError(t, err)

	assert.InDelta(t, 10, ts.SequenceLength(), 1e-12)
	assert.Equal(t, 8, ts.NumNodes())
	assert.Equal(t, 6, ts.NumEdges())
	assert.Equal(t, 2, ts.NumTrees())
	assert.Equal(t, []int{0, 1, 2, 3}, ts.Samples())
	assert.True(t, ts.IsSample(2))
	assert.False(t, ts.IsSample(5))
	assert.False(t, ts.IsSample(42))
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 2, 1.5, 4}, ts.NodeTimes())

	leaves, err := ts.Group("left")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, leaves)

	_, err = ts.Group("missing")
	require.ErrorIs(t, err, treeseq.ErrUnknownGroup)
}

func TestDiffs_CoverSequenceInOrder(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.TwoTrees())
	require.NoError(t, err)

	var events []treeseq.DiffEvent
	for ev := range ts.Diffs() {
		events = append(events, treeseq.CloneEvent(ev))
	}

	require.Len(t, events, 2)

	assert.InDelta(t, 0, events[0].Left, 1e-12)
	assert.InDelta(t, 4, events[0].Length(), 1e-12)
	assert.Empty(t, events[0].Out)
	assert.Equal(t, []int{4, 5, 7}, parents(events[0].In))

	assert.InDelta(t, 4, events[1].Left, 1e-12)
	assert.InDelta(t, 6, events[1].Length(), 1e-12)
	// Removal runs from the oldest parent down, insertion from the youngest up.
	assert.Equal(t, []int{7, 5, 4}, parents(events[1].Out))
	assert.Equal(t, []int{6, 5, 7}, parents(events[1].In))
}

func TestDiffs_GapProducesEmptyTree(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.UnaryChain())
	require.NoError(t, err)

	var lengths []float64

	var outs, ins []int

	for ev := range ts.Diffs() {
		lengths = append(lengths, ev.Length())
		outs = append(outs, len(ev.Out))
		ins = append(ins, len(ev.In))
	}

	assert.Equal(t, []float64{2, 1}, lengths)
	assert.Equal(t, []int{0, 3}, outs)
	assert.Equal(t, []int{3, 0}, ins)
}

func TestDiffs_StopsEarly(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.Random(3, tstest.Options{Samples: 6, Trees: 20, SequenceLength: 100}))
	require.NoError(t, err)

	count := 0

	for range ts.Diffs() {
		count++
		if count == 3 {
			break
		}
	}

	assert.Equal(t, 3, count)
}

func TestDiffs_LengthsSumToSequenceLength(t *testing.T) {
	t.Parallel()

	for seed := range uint64(10) {
		tables := tstest.Random(seed, tstest.Options{
			Samples: 8, Trees: 25, SequenceLength: 50, PolytomyRate: 0.3,
		})

		ts, err := treeseq.New(tables)
		require.NoError(t, err, "seed %d", seed)

		total := 0.0
		for ev := range ts.Diffs() {
			total += ev.Length()
		}

		assert.InDelta(t, 50, total, 1e-9, "seed %d", seed)
	}
}

func parents(records []treeseq.EdgeRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Parent
	}

	return out
}
