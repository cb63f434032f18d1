package branchstats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstats/internal/tstest"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

func mustSequence(t *testing.T, tables treeseq.Tables) *treeseq.TreeSequence {
	t.Helper()

	ts, err := treeseq.New(tables)
	require.NoError(t, err)

	return ts
}

func TestPathLength_SingleTree(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.Three())

	for tree := range ts.Trees() {
		tests := []struct {
			x, y int
			want float64
		}{
			{0, 1, 4},
			{1, 0, 4},
			{0, 2, 10},
			{0, 0, 0},
			{0, 3, 2},
			{2, 4, 5},
		}

		for _, tt := range tests {
			got, err := branchstats.PathLength(tree, tt.x, tt.y)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12, "path %d-%d", tt.x, tt.y)
		}
	}
}

func TestPathLength_Errors(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.UnaryChain())

	for tree := range ts.Trees() {
		if tree.Index() != 1 {
			continue
		}

		_, err := branchstats.PathLength(tree, 0, 3)
		require.ErrorIs(t, err, branchstats.ErrMissingSample)

		_, err = branchstats.PathLength(tree, 0, 1)
		require.ErrorIs(t, err, branchstats.ErrNoCommonAncestor)
	}
}

func TestDiversity(t *testing.T) {
	t.Parallel()

	three := mustSequence(t, tstest.Three())

	d, err := branchstats.Diversity(three, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4, d, 1e-12)

	two := mustSequence(t, tstest.TwoTrees())

	// 2 on [0, 4) and 8 on [4, 10).
	d, err = branchstats.Diversity(two, 0, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.6, d, 1e-12)
}

func TestDiversity_Symmetric(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.Random(21, tstest.Options{Samples: 6, Trees: 15, SequenceLength: 40, PolytomyRate: 0.2}))

	for x := range 6 {
		for y := x + 1; y < 6; y++ {
			a, err := branchstats.Diversity(ts, x, y)
			require.NoError(t, err)

			b, err := branchstats.Diversity(ts, y, x)
			require.NoError(t, err)

			assert.InDelta(t, a, b, 1e-9, "pair %d-%d", x, y)
			assert.Positive(t, a)
		}
	}
}

func TestDiversity_Errors(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.UnaryChain())

	_, err := branchstats.Diversity(ts, 0, 99)
	require.ErrorIs(t, err, branchstats.ErrMissingSample)

	_, err = branchstats.Diversity(ts, -1, 0)
	require.ErrorIs(t, err, branchstats.ErrMissingSample)

	// The gap tree leaves the samples disconnected.
	_, err = branchstats.Diversity(ts, 0, 1)
	require.ErrorIs(t, err, branchstats.ErrNoCommonAncestor)
}

func TestYStat(t *testing.T) {
	t.Parallel()

	three := mustSequence(t, tstest.Three())

	tests := []struct {
		name    string
		x, y, z int
		want    float64
	}{
		{name: "inside_pair", x: 0, y: 1, z: 2, want: 2},
		{name: "inside_pair_swapped", x: 1, y: 2, z: 0, want: 2},
		{name: "outgroup", x: 2, y: 0, z: 1, want: 8},
	}

	for _, tt := range tests {
		got, err := branchstats.YStat(three, tt.x, tt.y, tt.z)
		require.NoError(t, err, tt.name)
		assert.InDelta(t, tt.want, got, 1e-12, tt.name)
	}
}

func TestYStat_StarIsZero(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.Star())

	got, err := branchstats.YStat(ts, 0, 1, 2)
	require.NoError(t, err)
	assert.InDelta(t, 0, got, 1e-12)
}

func TestYStat_Errors(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.UnaryChain())

	_, err := branchstats.YStat(ts, 0, 1, 42)
	require.ErrorIs(t, err, branchstats.ErrMissingSample)

	_, err = branchstats.YStat(ts, 0, 1, 2)
	require.ErrorIs(t, err, branchstats.ErrNoCommonAncestor)
}
