package treeseq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/branchstats/internal/tstest"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

func TestTree_SingleTreeQueries(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.Three())
	require.NoError(t, err)

	count := 0

	for tree := range ts.Trees() {
		count++

		left, right := tree.Interval()
		assert.InDelta(t, 0, left, 1e-12)
		assert.InDelta(t, 1, right, 1e-12)
		assert.InDelta(t, 1, tree.Length(), 1e-12)
		assert.Equal(t, 0, tree.Index())

		assert.Equal(t, 3, tree.MRCA(0, 1))
		assert.Equal(t, 4, tree.MRCA(0, 2))
		assert.Equal(t, 4, tree.MRCA(1, 2))
		assert.Equal(t, 3, tree.MRCA(0, 3))
		assert.Equal(t, 0, tree.MRCA(0, 0))

		assert.Equal(t, 3, tree.Parent(0))
		assert.Equal(t, treeseq.NoNode, tree.Parent(4))
		assert.InDelta(t, 2, tree.BranchLength(0), 1e-12)
		assert.InDelta(t, 5, tree.BranchLength(2), 1e-12)
		assert.InDelta(t, 3, tree.BranchLength(3), 1e-12)
		assert.InDelta(t, 0, tree.BranchLength(4), 1e-12)

		assert.Equal(t, []int{0, 1, 2, 3, 4}, tree.Nodes())
		assert.Equal(t, []int{4}, tree.Roots())
	}

	assert.Equal(t, 1, count)
}

func TestTree_ContainsAndDisconnectedMRCA(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.UnaryChain())
	require.NoError(t, err)

	var trees int

	for tree := range ts.Trees() {
		switch tree.Index() {
		case 0:
			assert.True(t, tree.Contains(3))
			assert.Equal(t, 5, tree.MRCA(0, 1))
			assert.InDelta(t, 1, tree.BranchLength(0), 1e-12)
		case 1:
			// The gap has only isolated samples.
			assert.True(t, tree.Contains(0))
			assert.False(t, tree.Contains(3))
			assert.False(t, tree.Contains(-1))
			assert.False(t, tree.Contains(100))
			assert.Equal(t, treeseq.NoNode, tree.MRCA(0, 1))
			assert.Equal(t, treeseq.NoNode, tree.MRCA(0, 3))
			assert.Equal(t, []int{0, 1, 2}, tree.Roots())
		}

		trees++
	}

	assert.Equal(t, 2, trees)
}

func TestTree_TopologyChangesAcrossBreakpoint(t *testing.T) {
	t.Parallel()

	ts, err := treeseq.New(tstest.TwoTrees())
	require.NoError(t, err)

	var mrcas []int

	var mutationNodes [][]int

	for tree := range ts.Trees() {
		mrcas = append(mrcas, tree.MRCA(0, 1), tree.MRCA(0, 2))

		var nodes []int
		for _, m := range tree.Mutations() {
			nodes = append(nodes, m.Node)
		}

		mutationNodes = append(mutationNodes, nodes)
	}

	assert.Equal(t, []int{4, 7, 7, 6}, mrcas)
	assert.Equal(t, [][]int{{0, 5, 7}, {6, 3}}, mutationNodes)
}

func TestTree_ParentsMatchEdgesOnRandomSequences(t *testing.T) {
	t.Parallel()

	tables := tstest.Random(11, tstest.Options{Samples: 7, Trees: 30, SequenceLength: 30, PolytomyRate: 0.25})
	ts, err := treeseq.New(tables)
	require.NoError(t, err)

	for tree := range ts.Trees() {
		left, _ := tree.Interval()

		expected := make([]int, ts.NumNodes())
		for i := range expected {
			expected[i] = treeseq.NoNode
		}

		for _, e := range ts.Edges() {
			if e.Left <= left && left < e.Right {
				for _, c := range e.Children {
					expected[c] = e.Parent
				}
			}
		}

		for u := range expected {
			assert.Equal(t, expected[u], tree.Parent(u), "tree %d node %d", tree.Index(), u)
		}

		// Every sample reaches a single root.
		roots := tree.Roots()
		assert.Len(t, roots, 1, "tree %d", tree.Index())
	}
}
