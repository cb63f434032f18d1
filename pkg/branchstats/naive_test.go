package branchstats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstats/internal/tstest"
	"github.com/Sumatoshi-tech/branchstats/pkg/branchstats"
)

func TestParseMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want branchstats.Method
	}{
		{"length", branchstats.MethodLength},
		{"Branch-Length", branchstats.MethodLength},
		{" mutations ", branchstats.MethodMutations},
		{"mutation-count", branchstats.MethodMutations},
	}

	for _, tt := range tests {
		got, err := branchstats.ParseMethod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := branchstats.ParseMethod("area")
	require.ErrorIs(t, err, branchstats.ErrUnknownMethod)
}

func TestNodeIter_UnknownMethodFailsBeforeWork(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.Three())
	trees := 0

	_, err := branchstats.NodeIter(ts, allSamples(ts), branchstats.Always(), branchstats.Method("area"),
		branchstats.WithTreeObserver(func(branchstats.TreeRecord) { trees++ }))
	require.ErrorIs(t, err, branchstats.ErrUnknownMethod)
	assert.Zero(t, trees)
}

func TestNodeIter_LengthOnSingleTree(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.Three())
	groups := branchstats.LeafGroups{{0, 1}, {2}}

	tests := []struct {
		name string
		cond branchstats.Condition
		want float64
	}{
		{name: "always", cond: branchstats.Always(), want: 12},
		{name: "singleton", cond: branchstats.Singleton(), want: 9},
		{name: "private_pair", cond: branchstats.Private(0), want: 7},
		{name: "fixed_pair", cond: branchstats.Fixed(0, 2), want: 3},
		{name: "shared", cond: branchstats.Shared(), want: 0},
	}

	for _, tt := range tests {
		got, err := branchstats.NodeIter(ts, groups, tt.cond, branchstats.MethodLength)
		require.NoError(t, err, tt.name)
		assert.InDelta(t, tt.want, got, 1e-12, tt.name)
	}
}

func TestNodeIter_MutationsSkipRootsAndIgnoreSpans(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.TwoTrees())

	var values []float64

	// Mutations sit on 0, 5 and the root 7 in the first tree, and on 6 and 3
	// in the second.
	got, err := branchstats.NodeIter(ts, allSamples(ts), branchstats.Always(), branchstats.MethodMutations,
		branchstats.WithTreeObserver(func(r branchstats.TreeRecord) { values = append(values, r.Value) }))
	require.NoError(t, err)

	assert.InDelta(t, 0.4, got, 1e-12)
	assert.Equal(t, []float64{2, 2}, values)

	got, err = branchstats.NodeIter(ts, allSamples(ts), branchstats.Singleton(), branchstats.MethodMutations)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got, 1e-12)
}

func TestNodeIter_Errors(t *testing.T) {
	t.Parallel()

	ts := mustSequence(t, tstest.Three())

	_, err := branchstats.NodeIter(ts, allSamples(ts), nil, branchstats.MethodLength)
	require.ErrorIs(t, err, branchstats.ErrNilCondition)

	_, err = branchstats.NodeIter(ts, branchstats.LeafGroups{{-1}}, branchstats.Always(), branchstats.MethodLength)
	require.ErrorIs(t, err, branchstats.ErrNodeOutOfRange)
}
