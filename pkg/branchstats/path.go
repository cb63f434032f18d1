package branchstats

import (
	"fmt"

	"github.com/Sumatoshi-tech/branchstats/pkg/alg/stats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// PathLength returns the total branch length on the path between x and y in
// tree: the sum of branch lengths from each of them up to their MRCA.
func PathLength(tree Tree, x, y int) (float64, error) {
	for _, u := range [2]int{x, y} {
		if !tree.Contains(u) {
			return 0, fmt.Errorf("%w: %d", ErrMissingSample, u)
		}
	}

	mrca := tree.MRCA(x, y)
	if mrca == treeseq.NoNode {
		return 0, fmt.Errorf("%w: %d and %d", ErrNoCommonAncestor, x, y)
	}

	total := 0.0

	for _, u := range [2]int{x, y} {
		for ; u != mrca; u = tree.Parent(u) {
			total += tree.BranchLength(u)
		}
	}

	return total, nil
}

// Diversity returns the span-weighted mean path length between x and y over
// the trees of ts.
func Diversity(ts Sequence, x, y int) (float64, error) {
	if err := checkNodes(ts, x, y); err != nil {
		return 0, err
	}

	return spanMean(ts, func(tree *treeseq.Tree) (float64, error) {
		return PathLength(tree, x, y)
	})
}

// YStat returns the span-weighted mean length of the branches separating x
// from y and z. In each tree the pair whose MRCA differs from the other two
// decides which path is measured; trees where all three MRCAs coincide add
// nothing.
func YStat(ts Sequence, x, y, z int) (float64, error) {
	if err := checkNodes(ts, x, y, z); err != nil {
		return 0, err
	}

	return spanMean(ts, func(tree *treeseq.Tree) (float64, error) {
		return yTree(tree, x, y, z)
	})
}

func yTree(tree Tree, x, y, z int) (float64, error) {
	for _, u := range [3]int{x, y, z} {
		if !tree.Contains(u) {
			return 0, fmt.Errorf("%w: %d", ErrMissingSample, u)
		}
	}

	xy := tree.MRCA(x, y)
	xz := tree.MRCA(x, z)
	yz := tree.MRCA(y, z)

	switch {
	case xy == xz && xz == yz:
		if xy == treeseq.NoNode {
			return 0, fmt.Errorf("%w: %d, %d and %d", ErrNoCommonAncestor, x, y, z)
		}

		return 0, nil
	case xy == xz:
		return pathTo(tree, x, yz)
	case xy == yz:
		return pathTo(tree, x, xz)
	default:
		return pathTo(tree, x, xy)
	}
}

// pathTo is PathLength with an internal node as the second endpoint.
func pathTo(tree Tree, x, u int) (float64, error) {
	if u == treeseq.NoNode {
		return 0, fmt.Errorf("%w: %d", ErrNoCommonAncestor, x)
	}

	return PathLength(tree, x, u)
}

func checkNodes(ts Sequence, nodes ...int) error {
	for _, u := range nodes {
		if u < 0 || u >= ts.NumNodes() {
			return fmt.Errorf("%w: %d", ErrMissingSample, u)
		}
	}

	return nil
}

func spanMean(ts Sequence, value func(*treeseq.Tree) (float64, error)) (float64, error) {
	var acc stats.Accumulator

	for tree := range ts.Trees() {
		v, err := value(tree)
		if err != nil {
			left, right := tree.Interval()

			return 0, fmt.Errorf("tree %d [%g, %g): %w", tree.Index(), left, right, err)
		}

		acc.Add(v * tree.Length())
	}

	return acc.Value() / ts.SequenceLength(), nil
}
