// Package thread keeps a post's reply trees flattened into dense, ordered
// positions.
//
// Every top-level comment opens a group. Each comment of the group holds a
// 1-based sequence, and ordering a group by sequence walks its reply tree
// depth first, parent before children. This package computes where rows go;
// moving them is left to the store, which only ever shifts a suffix of a
// group up or down.
package thread

import (
	"errors"
	"fmt"
)

// ErrOrderConflict is returned when an insertion or removal would leave a gap
// or a duplicate in a group's sequences.
var ErrOrderConflict = errors.New("thread order conflict")

// Node is the positional state of a comment inside its group.
type Node struct {
	Sequence    int
	Depth       int
	ChildrenNum int
}

// Stats aggregates a whole group at the moment a reply is placed.
type Stats struct {
	Count          int
	ChildrenNumSum int
	MaxDepth       int
}

// Rule names the branch of the reply placement that produced a Placement.
type Rule int

const (
	// RuleBelowDeepest: the reply sits above the group's deepest level.
	RuleBelowDeepest Rule = iota + 1
	// RuleAtDeepest: the reply sits on the group's deepest level.
	RuleAtDeepest
	// RuleNewDeepest: the reply opens a new deepest level.
	RuleNewDeepest
)

func (r Rule) String() string {
	switch r {
	case RuleBelowDeepest:
		return "below_deepest"
	case RuleAtDeepest:
		return "at_deepest"
	case RuleNewDeepest:
		return "new_deepest"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Placement tells the store where a new reply goes.
type Placement struct {
	Sequence int
	Depth    int
	// ShiftFrom is the first sequence that moves up by one to make room.
	// Zero means no row moves.
	ShiftFrom int
	Rule      Rule
}

// Shifts reports whether existing rows must move before the insert.
func (p Placement) Shifts() bool {
	return p.ShiftFrom > 0
}

// NextGroup returns the group for a new top-level comment, given the highest
// group already used by the post (0 when it has none).
func NextGroup(maxGroup int) int {
	return maxGroup + 1
}

// PlanReply places a reply to parent. stats must be read from the parent's
// group in the same transaction that applies the placement.
func PlanReply(parent Node, stats Stats) (Placement, error) {
	if parent.Sequence < 1 || parent.Sequence > stats.Count {
		return Placement{}, fmt.Errorf("%w: parent sequence %d outside group of %d",
			ErrOrderConflict, parent.Sequence, stats.Count)
	}

	p := placeReply(parent, stats)
	if err := checkInsert(p, stats.Count); err != nil {
		return Placement{}, err
	}
	return p, nil
}

// placeReply holds the placement arithmetic, compared against the deepest
// level currently present in the group.
//
// TODO: the below-deepest branch offsets by the childrenNum sum of the whole
// group rather than the parent's own subtree; it only lands on a free slot for
// replies to the root, and checkInsert rejects every other outcome.
func placeReply(parent Node, stats Stats) Placement {
	depth := parent.Depth + 1

	switch {
	case depth < stats.MaxDepth:
		return Placement{
			Sequence: stats.ChildrenNumSum + parent.Sequence + 1,
			Depth:    depth,
			Rule:     RuleBelowDeepest,
		}
	case depth == stats.MaxDepth:
		// the parent's replies are all leaves, so its block is 1+ChildrenNum long
		seq := parent.Sequence + parent.ChildrenNum + 1
		return Placement{Sequence: seq, Depth: depth, ShiftFrom: seq, Rule: RuleAtDeepest}
	default:
		seq := parent.Sequence + 1
		return Placement{Sequence: seq, Depth: depth, ShiftFrom: seq, Rule: RuleNewDeepest}
	}
}

// checkInsert keeps a group dense: an unshifted insert must append, a shifted
// one must land inside 1..count+1.
func checkInsert(p Placement, count int) error {
	switch {
	case p.Sequence < 1:
		return fmt.Errorf("%w: sequence %d", ErrOrderConflict, p.Sequence)
	case !p.Shifts() && p.Sequence != count+1:
		return fmt.Errorf("%w: %s placement at %d without shift in group of %d",
			ErrOrderConflict, p.Rule, p.Sequence, count)
	case p.Shifts() && p.Sequence > count+1:
		return fmt.Errorf("%w: %s placement at %d past end of group of %d",
			ErrOrderConflict, p.Rule, p.Sequence, count)
	}
	return nil
}
