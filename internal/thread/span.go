package thread

import "fmt"

// Span is an inclusive range of sequences inside one group.
type Span struct {
	First int
	Last  int
}

// Size returns the number of sequences in s.
func (s Span) Size() int {
	return s.Last - s.First + 1
}

// Contains reports whether seq falls inside s.
func (s Span) Contains(seq int) bool {
	return seq >= s.First && seq <= s.Last
}

// SubtreeSpan returns the block occupied by n and all of its descendants.
//
// boundary is the sequence of the first row after n whose depth is not
// greater than n's, or 0 when n's subtree runs to the end of the group. count
// is the number of rows in the group. When every reply of n is a leaf the
// span is exactly Sequence..Sequence+ChildrenNum.
func SubtreeSpan(n Node, boundary, count int) (Span, error) {
	last := count
	if boundary > 0 {
		last = boundary - 1
	}

	s := Span{First: n.Sequence, Last: last}
	if n.Sequence < 1 || last > count || s.Size() < n.ChildrenNum+1 {
		return Span{}, fmt.Errorf("%w: subtree of %d (children %d) ends at %d in group of %d",
			ErrOrderConflict, n.Sequence, n.ChildrenNum, last, count)
	}
	return s, nil
}
