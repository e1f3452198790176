// Package selection tracks page ranges built from two-click selections.
//
// Ranges are half-open [Start, End) over zero-based page indices. They are
// kept in insertion order and may overlap. Every page carries a coverage
// count, so a page only returns to the free state when the last range that
// covers it is removed.
package selection

import (
	"errors"
	"fmt"
)

var (
	// ErrPageOutOfRange is returned for clicks outside the document.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrNoRangeSelected is returned when removing a range that does not exist.
	ErrNoRangeSelected = errors.New("no range selected")
)

// PageState is the visibility state of a single page.
type PageState int

const (
	// Free pages are selectable and show a thumbnail.
	Free PageState = iota
	// Committed pages belong to at least one range and are hidden.
	Committed
)

func (s PageState) String() string {
	if s == Committed {
		return "committed"
	}
	return "free"
}

// Range is a committed span of pages, [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len is the number of pages in the range.
func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether page lies in the range.
func (r Range) Contains(page int) bool { return page >= r.Start && page < r.End }

// Pages lists the zero-based page indices of the range in order.
func (r Range) Pages() []int {
	out := make([]int, 0, r.Len())
	for p := r.Start; p < r.End; p++ {
		out = append(out, p)
	}
	return out
}

// Label renders the range for the side panel; k is the 1-based position.
func (r Range) Label(k int) string {
	n := r.Len()
	suffix := "s"
	if n == 1 {
		suffix = ""
	}
	return fmt.Sprintf("Range %d: pages %d - %d (%d page%s)", k, r.Start+1, r.End, n, suffix)
}

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// ClickResult describes what a click did.
type ClickResult struct {
	// Pending is true when the click opened a selection.
	Pending bool
	Page    int
	// Committed is set when the click closed a selection.
	Committed Range
	// Hidden lists pages that went from free to committed.
	Hidden []int
}

// Selector holds the range list, the pending start and page coverage.
// It is not safe for concurrent use; the application loop owns it.
type Selector struct {
	total      int
	ranges     []Range
	pending    int
	hasPending bool
	cover      []int
}

// New returns a selector for a document with total pages.
func New(total int) *Selector {
	if total < 0 {
		total = 0
	}
	return &Selector{total: total, cover: make([]int, total)}
}

// Total is the page count the selector was built for.
func (s *Selector) Total() int { return s.total }

// Click feeds one page click. The first click of a pair becomes pending,
// the second commits [min, max+1).
func (s *Selector) Click(page int) (ClickResult, error) {
	if page < 0 || page >= s.total {
		return ClickResult{}, fmt.Errorf("click page %d of %d: %w", page, s.total, ErrPageOutOfRange)
	}
	if !s.hasPending {
		s.pending, s.hasPending = page, true
		return ClickResult{Pending: true, Page: page}, nil
	}
	start, end := s.pending, page
	if end < start {
		start, end = end, start
	}
	r := Range{Start: start, End: end + 1}
	s.ranges = append(s.ranges, r)
	s.hasPending = false
	return ClickResult{Page: page, Committed: r, Hidden: s.cover1(r, +1)}, nil
}

// Remove deletes the range at position i and returns it together with the
// pages that became free.
func (s *Selector) Remove(i int) (Range, []int, error) {
	if i < 0 || i >= len(s.ranges) {
		return Range{}, nil, ErrNoRangeSelected
	}
	r := s.ranges[i]
	s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
	return r, s.cover1(r, -1), nil
}

// Clear drops every range and the pending selection, returning the pages
// that became free.
func (s *Selector) Clear() []int {
	var freed []int
	for p, c := range s.cover {
		if c > 0 {
			freed = append(freed, p)
		}
		s.cover[p] = 0
	}
	s.ranges = nil
	s.hasPending = false
	return freed
}

// Ranges returns a copy of the committed ranges in insertion order.
func (s *Selector) Ranges() []Range {
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// Len is the number of committed ranges.
func (s *Selector) Len() int { return len(s.ranges) }

// Pending returns the pending start page, if any.
func (s *Selector) Pending() (int, bool) { return s.pending, s.hasPending }

// State is the visibility state of page.
func (s *Selector) State(page int) PageState {
	if page >= 0 && page < s.total && s.cover[page] > 0 {
		return Committed
	}
	return Free
}

// IsFree reports whether page is not covered by any range.
func (s *Selector) IsFree(page int) bool { return s.State(page) == Free }

// cover1 adjusts coverage for r by delta and returns the pages whose state
// flipped (free->committed for +1, committed->free for -1).
func (s *Selector) cover1(r Range, delta int) []int {
	var flipped []int
	for p := r.Start; p < r.End; p++ {
		before := s.cover[p]
		s.cover[p] += delta
		if s.cover[p] < 0 {
			s.cover[p] = 0
		}
		if (before == 0) != (s.cover[p] == 0) {
			flipped = append(flipped, p)
		}
	}
	return flipped
}
