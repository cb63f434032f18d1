package branchstats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Condition decides whether a branch is counted from its count vector. The
// slice is owned by the caller and is only valid for the duration of the call.
type Condition func(counts []int) bool

// Condition parse errors.
var (
	ErrUnknownCondition = errors.New("unknown condition")
	ErrBadGroupIndex    = errors.New("group index out of range")
)

// Always counts every branch.
func Always() Condition {
	return func([]int) bool { return true }
}

// Segregating counts branches that separate the leaves: at least one leaf
// descends from the branch and at least one does not. sizes are the group
// sizes, in group order.
func Segregating(sizes []int) Condition {
	total := 0
	for _, n := range sizes {
		total += n
	}

	return func(counts []int) bool {
		sum := 0
		for _, c := range counts {
			sum += c
		}

		return sum > 0 && sum < total
	}
}

// Singleton counts branches subtending exactly one leaf across all groups.
func Singleton() Condition {
	return func(counts []int) bool {
		sum := 0
		for _, c := range counts {
			sum += c
		}

		return sum == 1
	}
}

// Private counts branches whose descendants all come from group k.
func Private(k int) Condition {
	return func(counts []int) bool {
		if k < 0 || k >= len(counts) || counts[k] == 0 {
			return false
		}

		for i, c := range counts {
			if i != k && c > 0 {
				return false
			}
		}

		return true
	}
}

// Shared counts branches with descendants in every group.
func Shared() Condition {
	return func(counts []int) bool {
		if len(counts) == 0 {
			return false
		}

		for _, c := range counts {
			if c == 0 {
				return false
			}
		}

		return true
	}
}

// Exactly counts branches with exactly n descendants from group k.
func Exactly(k, n int) Condition {
	return func(counts []int) bool {
		return k >= 0 && k < len(counts) && counts[k] == n
	}
}

// Fixed counts branches subtending every one of the size leaves of group k.
func Fixed(k, size int) Condition {
	return Exactly(k, size)
}

// Not negates c.
func Not(c Condition) Condition {
	return func(counts []int) bool { return !c(counts) }
}

// And holds when all of cs hold.
func And(cs ...Condition) Condition {
	return func(counts []int) bool {
		for _, c := range cs {
			if !c(counts) {
				return false
			}
		}

		return true
	}
}

// ParseCondition builds a Condition from a textual expression. sizes are the
// group sizes. Expressions:
//
//	always | segregating | singleton | shared
//	private:K | exactly:K=N | fixed:K | not:EXPR
//
// Several expressions joined with "+" must all hold.
func ParseCondition(expr string, sizes []int) (Condition, error) {
	expr = strings.TrimSpace(expr)

	if strings.Contains(expr, "+") {
		parts := strings.Split(expr, "+")
		conds := make([]Condition, 0, len(parts))

		for _, part := range parts {
			c, err := ParseCondition(part, sizes)
			if err != nil {
				return nil, err
			}

			conds = append(conds, c)
		}

		return And(conds...), nil
	}

	name, arg, hasArg := strings.Cut(expr, ":")

	switch strings.ToLower(name) {
	case "always":
		return Always(), nil
	case "segregating":
		return Segregating(sizes), nil
	case "singleton":
		return Singleton(), nil
	case "shared":
		return Shared(), nil
	case "not":
		if !hasArg {
			return nil, fmt.Errorf("%w: %q needs an operand", ErrUnknownCondition, expr)
		}

		inner, err := ParseCondition(arg, sizes)
		if err != nil {
			return nil, err
		}

		return Not(inner), nil
	case "private":
		k, err := parseGroup(arg, hasArg, sizes)
		if err != nil {
			return nil, err
		}

		return Private(k), nil
	case "fixed":
		k, err := parseGroup(arg, hasArg, sizes)
		if err != nil {
			return nil, err
		}

		return Fixed(k, sizes[k]), nil
	case "exactly":
		group, count, ok := strings.Cut(arg, "=")
		if !hasArg || !ok {
			return nil, fmt.Errorf("%w: %q, want exactly:K=N", ErrUnknownCondition, expr)
		}

		k, err := parseGroup(group, true, sizes)
		if err != nil {
			return nil, err
		}

		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad count in %q", ErrUnknownCondition, expr)
		}

		return Exactly(k, n), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCondition, expr)
	}
}

func parseGroup(arg string, hasArg bool, sizes []int) (int, error) {
	if !hasArg {
		return 0, fmt.Errorf("%w: missing group index", ErrBadGroupIndex)
	}

	k, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadGroupIndex, arg)
	}

	if k < 0 || k >= len(sizes) {
		return 0, fmt.Errorf("%w: %d with %d groups", ErrBadGroupIndex, k, len(sizes))
	}

	return k, nil
}

// GroupSizes returns the number of leaves in each group.
func GroupSizes(groups LeafGroups) []int {
	sizes := make([]int, len(groups))
	for i, g := range groups {
		sizes[i] = len(g)
	}

	return sizes
}
