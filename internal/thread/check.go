package thread

import (
	"fmt"
	"sort"
)

// Row is a comment as seen by Check: its identity, its parent (0 for the
// group's root) and its position.
type Row struct {
	ID       int64
	ParentID int64
	Node
}

// Check verifies that rows, all from one group, are densely numbered 1..N and
// that sequence order is a pre-order walk of the reply tree with accurate
// ChildrenNum counts. The slice is not modified.
func Check(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	children := make(map[int64]int, len(sorted))
	// stack[d-1] is the most recent row at depth d still open
	var stack []Row

	for i, r := range sorted {
		if r.Sequence != i+1 {
			return fmt.Errorf("%w: expected sequence %d, found %d (comment %d)",
				ErrOrderConflict, i+1, r.Sequence, r.ID)
		}

		if i == 0 {
			if r.Depth != 1 || r.ParentID != 0 {
				return fmt.Errorf("%w: group must start with its root, found comment %d at depth %d",
					ErrOrderConflict, r.ID, r.Depth)
			}
			stack = append(stack[:0], r)
			continue
		}

		if r.Depth < 2 || r.Depth > len(stack)+1 {
			return fmt.Errorf("%w: comment %d at depth %d cannot follow depth %d",
				ErrOrderConflict, r.ID, r.Depth, len(stack))
		}

		stack = stack[:r.Depth-1]
		parent := stack[len(stack)-1]
		if r.ParentID != parent.ID {
			return fmt.Errorf("%w: comment %d at sequence %d is outside the subtree of its parent %d",
				ErrOrderConflict, r.ID, r.Sequence, r.ParentID)
		}
		children[parent.ID]++
		stack = append(stack, r)
	}

	for _, r := range sorted {
		if children[r.ID] != r.ChildrenNum {
			return fmt.Errorf("comment %d has %d replies, childrenNum is %d",
				r.ID, children[r.ID], r.ChildrenNum)
		}
	}
	return nil
}
