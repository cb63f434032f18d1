// Package branchstats computes branch-length statistics over a tree sequence.
//
// A branch is counted when a Condition holds for its count vector: the number
// of leaves from each leaf group that descend from it. Counted branch lengths
// are summed per tree, weighted by the tree's genomic span and divided by the
// sequence length.
//
// Engine is the incremental implementation: it consumes the edge-diff stream
// once, keeping per-node count vectors and the current counted length up to
// date by walking only the ancestors of records that change. NodeIter is the
// full-traversal baseline used to check it. PathLength, Diversity and YStat are
// fixed-arity statistics over single-tree snapshots.
package branchstats

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// Sentinel errors.
var (
	ErrUnknownMethod         = errors.New("unknown method")
	ErrMissingSample         = errors.New("sample not present in tree")
	ErrNoCommonAncestor      = errors.New("nodes have no common ancestor")
	ErrNodeOutOfRange        = errors.New("node id out of range")
	ErrNilCondition          = errors.New("condition must not be nil")
	ErrInvalidSequenceLength = errors.New("sequence length must be positive")
	ErrNegativeLength        = errors.New("diff event has negative length")
	ErrAlreadyAttached       = errors.New("child already has a parent")
	ErrNotAttached           = errors.New("child is not attached to the record's parent")
	ErrCycle                 = errors.New("ancestor walk does not terminate")
	ErrDuplicateSpec         = errors.New("duplicate statistic name")
)

// LeafGroups lists the leaves of each group. Groups are meant to be disjoint;
// a leaf listed in several groups counts towards each of them.
type LeafGroups [][]int

// Tree is the single-tree query surface used by PathLength.
type Tree interface {
	Contains(u int) bool
	Parent(u int) int
	BranchLength(u int) float64
	MRCA(a, b int) int
}

// Sequence is the tree-sequence surface used by the statistics.
type Sequence interface {
	SequenceLength() float64
	NumNodes() int
	NodeTimes() []float64
	Trees() iter.Seq[*treeseq.Tree]
	Diffs() iter.Seq[treeseq.DiffEvent]
}

// TreeRecord is the per-tree value reported to a tree observer.
type TreeRecord struct {
	Index int
	Left  float64
	Right float64
	Value float64
}

// Length returns the genomic span of the record.
func (r TreeRecord) Length() float64 { return r.Right - r.Left }

type options struct {
	logger   *slog.Logger
	observer func(TreeRecord)
}

// Option configures NodeIter, Engine and the Compute helpers.
type Option func(*options)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTreeObserver registers fn to receive each tree's value as it is
// computed. ComputeAll calls fn from several goroutines.
func WithTreeObserver(fn func(TreeRecord)) Option {
	return func(o *options) {
		o.observer = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}

	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

func validateGroups(groups LeafGroups, numNodes int) error {
	for k, g := range groups {
		for _, leaf := range g {
			if leaf < 0 || leaf >= numNodes {
				return fmt.Errorf("leaf group %d: %w: %d", k, ErrNodeOutOfRange, leaf)
			}
		}
	}

	return nil
}
