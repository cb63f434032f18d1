package branchstats

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/branchstats/pkg/alg/stats"
	"github.com/Sumatoshi-tech/branchstats/pkg/treeseq"
)

// coverageTolerance is the relative shortfall in covered length below which a
// run counts as complete.
const coverageTolerance = 1e-9

// EngineStats counts the work done by an Engine.
type EngineStats struct {
	Events         int
	EdgesOut       int
	EdgesIn        int
	AncestorVisits int
	PredicateCalls int
}

// Result is the outcome of a full pass over a diff stream.
type Result struct {
	// Value is Sum divided by SequenceLength.
	Value float64
	// Sum is the span-weighted counted length.
	Sum            float64
	Covered        float64
	SequenceLength float64
	Trees          int
	// Truncated reports that the stream ended before covering the sequence.
	Truncated bool
	Stats     EngineStats
}

// Engine maintains the count vector of every node and the current counted
// length L while consuming the edge-diff stream. After each event L equals
// the sum of time[parent[u]] - time[u] over the nodes u with a parent whose
// counts satisfy the condition.
type Engine struct {
	k        int
	cond     Condition
	parent   []int
	time     []float64
	counts   []int
	delta    []int
	current  float64
	sum      stats.Accumulator
	covered  float64
	trees    int
	stats    EngineStats
	logger   *slog.Logger
	observer func(TreeRecord)
}

// NewEngine returns an engine for nodes with the given times. Every node
// starts detached; each group leaf contributes one to its own count.
func NewEngine(nodeTimes []float64, groups LeafGroups, cond Condition, opts ...Option) (*Engine, error) {
	if cond == nil {
		return nil, ErrNilCondition
	}

	n := len(nodeTimes)
	if err := validateGroups(groups, n); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	k := len(groups)

	e := &Engine{
		k:        k,
		cond:     cond,
		parent:   make([]int, n),
		time:     slices.Clone(nodeTimes),
		counts:   make([]int, n*k),
		delta:    make([]int, k),
		logger:   o.logger,
		observer: o.observer,
	}

	for u := range e.parent {
		e.parent[u] = treeseq.NoNode
	}

	for g, leaves := range groups {
		for _, leaf := range leaves {
			e.counts[leaf*k+g]++
		}
	}

	return e, nil
}

// Apply consumes one diff event: removals, then insertions, then the span of
// the resulting tree is added to the running sum.
func (e *Engine) Apply(ev treeseq.DiffEvent) error {
	length := ev.Length()
	if length < 0 || math.IsNaN(length) {
		return fmt.Errorf("%w: [%g, %g)", ErrNegativeLength, ev.Left, ev.Right)
	}

	for _, rec := range ev.Out {
		if err := e.remove(rec); err != nil {
			return fmt.Errorf("tree %d: remove record of %d: %w", e.trees, rec.Parent, err)
		}
	}

	for _, rec := range ev.In {
		if err := e.insert(rec); err != nil {
			return fmt.Errorf("tree %d: insert record of %d: %w", e.trees, rec.Parent, err)
		}
	}

	e.sum.Add(e.current * length)
	e.covered += length
	e.stats.Events++

	e.logger.Debug("tree", "index", e.trees, "left", ev.Left, "right", ev.Right,
		"out", len(ev.Out), "in", len(ev.In), "length", e.current)

	if e.observer != nil {
		e.observer(TreeRecord{Index: e.trees, Left: ev.Left, Right: ev.Right, Value: e.current})
	}

	e.trees++

	return nil
}

func (e *Engine) remove(rec treeseq.EdgeRecord) error {
	if !e.inRange(rec.Parent) {
		return fmt.Errorf("%w: parent %d", ErrNodeOutOfRange, rec.Parent)
	}

	clear(e.delta)

	for _, c := range rec.Children {
		if !e.inRange(c) {
			return fmt.Errorf("%w: child %d", ErrNodeOutOfRange, c)
		}

		if e.parent[c] != rec.Parent {
			return fmt.Errorf("%w: child %d has parent %d", ErrNotAttached, c, e.parent[c])
		}

		if e.holds(c) {
			e.current -= e.branch(c)
		}

		e.parent[c] = treeseq.NoNode

		for g, v := range e.row(c) {
			e.delta[g] -= v
		}
	}

	e.stats.EdgesOut++

	return e.propagate(rec.Parent)
}

func (e *Engine) insert(rec treeseq.EdgeRecord) error {
	if !e.inRange(rec.Parent) {
		return fmt.Errorf("%w: parent %d", ErrNodeOutOfRange, rec.Parent)
	}

	clear(e.delta)

	for _, c := range rec.Children {
		if !e.inRange(c) {
			return fmt.Errorf("%w: child %d", ErrNodeOutOfRange, c)
		}

		if e.parent[c] != treeseq.NoNode {
			return fmt.Errorf("%w: child %d has parent %d", ErrAlreadyAttached, c, e.parent[c])
		}

		e.parent[c] = rec.Parent

		if e.holds(c) {
			e.current += e.branch(c)
		}

		for g, v := range e.row(c) {
			e.delta[g] += v
		}
	}

	e.stats.EdgesIn++

	return e.propagate(rec.Parent)
}

// propagate adds e.delta to the counts of start and all its ancestors. A node
// whose condition flips adds or removes its own branch from L.
func (e *Engine) propagate(start int) error {
	if !slices.ContainsFunc(e.delta, func(v int) bool { return v != 0 }) {
		return nil
	}

	steps := 0

	for u := start; u != treeseq.NoNode; u = e.parent[u] {
		steps++
		if steps > len(e.parent) {
			return fmt.Errorf("%w: from node %d", ErrCycle, start)
		}

		e.stats.AncestorVisits++

		before := e.check(u)

		row := e.row(u)
		for g, d := range e.delta {
			row[g] += d
		}

		after := e.check(u)

		if before == after || e.parent[u] == treeseq.NoNode {
			continue
		}

		if after {
			e.current += e.branch(u)
		} else {
			e.current -= e.branch(u)
		}
	}

	return nil
}

func (e *Engine) row(u int) []int {
	return e.counts[u*e.k : (u+1)*e.k : (u+1)*e.k]
}

func (e *Engine) check(u int) bool {
	e.stats.PredicateCalls++

	return e.cond(e.row(u))
}

// holds reports whether u's branch is counted.
func (e *Engine) holds(u int) bool {
	return e.parent[u] != treeseq.NoNode && e.check(u)
}

func (e *Engine) branch(u int) float64 {
	return e.time[e.parent[u]] - e.time[u]
}

func (e *Engine) inRange(u int) bool {
	return u >= 0 && u < len(e.parent)
}

// Current returns the counted length of the current tree.
func (e *Engine) Current() float64 { return e.current }

// Accumulated returns the span-weighted sum over the events applied so far.
func (e *Engine) Accumulated() float64 { return e.sum.Value() }

// Covered returns the total span of the events applied so far.
func (e *Engine) Covered() float64 { return e.covered }

// Trees returns the number of events applied so far.
func (e *Engine) Trees() int { return e.trees }

// Counts returns a copy of u's count vector.
func (e *Engine) Counts(u int) []int {
	if !e.inRange(u) {
		return nil
	}

	return slices.Clone(e.row(u))
}

// Parent returns u's current parent, or treeseq.NoNode.
func (e *Engine) Parent(u int) int {
	if !e.inRange(u) {
		return treeseq.NoNode
	}

	return e.parent[u]
}

// Stats returns the work counters.
func (e *Engine) Stats() EngineStats { return e.stats }

// Finish divides the accumulated sum by sequenceLength. A stream that ended
// short of sequenceLength still yields a result, flagged as truncated.
func (e *Engine) Finish(sequenceLength float64) (Result, error) {
	if !(sequenceLength > 0) {
		return Result{}, fmt.Errorf("%w: %g", ErrInvalidSequenceLength, sequenceLength)
	}

	res := Result{
		Value:          e.sum.Value() / sequenceLength,
		Sum:            e.sum.Value(),
		Covered:        e.covered,
		SequenceLength: sequenceLength,
		Trees:          e.trees,
		Stats:          e.stats,
	}

	if e.covered < sequenceLength*(1-coverageTolerance) {
		res.Truncated = true

		e.logger.Warn("diff stream ended before the end of the sequence",
			"covered", e.covered, "sequence_length", sequenceLength, "trees", e.trees)
	}

	return res, nil
}
