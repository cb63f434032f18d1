package branchstats

import (
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/branchstats/pkg/alg/stats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// Method selects what NodeIter sums on counted branches.
type Method string

// Methods.
const (
	// MethodLength sums counted branch lengths weighted by tree span.
	MethodLength Method = "length"
	// MethodMutations counts mutations on counted branches. Tree spans are
	// not applied, but the total is still divided by the sequence length.
	MethodMutations Method = "mutations"
)

// ParseMethod maps a method name to a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "length", "branch", "branch-length":
		return MethodLength, nil
	case "mutations", "mutation", "mutation-count", "sites":
		return MethodMutations, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}

// NodeIter computes the statistic by rebuilding every count vector from
// scratch for each tree. Its cost is proportional to the number of trees times
// the leaf-to-root path lengths; Engine computes the same length statistic
// incrementally.
func NodeIter(ts Sequence, groups LeafGroups, cond Condition, method Method, opts ...Option) (float64, error) {
	if method != MethodLength && method != MethodMutations {
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	if cond == nil {
		return 0, ErrNilCondition
	}

	n := ts.NumNodes()
	if err := validateGroups(groups, n); err != nil {
		return 0, err
	}

	o := buildOptions(opts)
	k := len(groups)
	counts := make([]int, n*k)

	var acc stats.Accumulator

	for tree := range ts.Trees() {
		clear(counts)

		for g, leaves := range groups {
			for _, leaf := range leaves {
				for u := leaf; u != treeseq.NoNode; u = tree.Parent(u) {
					counts[u*k+g]++
				}
			}
		}

		holds := func(u int) bool {
			return tree.Parent(u) != treeseq.NoNode && cond(counts[u*k:(u+1)*k:(u+1)*k])
		}

		value := 0.0

		switch method {
		case MethodLength:
			for _, u := range tree.Nodes() {
				if holds(u) {
					value += tree.BranchLength(u)
				}
			}

			acc.Add(value * tree.Length())
		case MethodMutations:
			for _, m := range tree.Mutations() {
				if holds(m.Node) {
					value++
				}
			}

			acc.Add(value)
		}

		if o.observer != nil {
			left, right := tree.Interval()
			o.observer(TreeRecord{Index: tree.Index(), Left: left, Right: right, Value: value})
		}
	}

	return acc.Value() / ts.SequenceLength(), nil
}
