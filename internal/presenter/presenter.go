// Package presenter projects the selector state onto a paged thumbnail
// grid. Only pages of the current window that are free are materialized.
package presenter

import (
	"fmt"
	"sort"
)

// Columns is the number of thumbnails per grid row.
const Columns = 3

// Thumb is one materialized thumbnail.
type Thumb struct {
	Page     int    `json:"page"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// View is what the surface draws.
type View struct {
	Label   string  `json:"label"`
	Start   int     `json:"start"`
	End     int     `json:"end"`
	Total   int     `json:"total"`
	Thumbs  []Thumb `json:"thumbs"`
	Scroll  int     `json:"scroll"`
	HasPrev bool    `json:"has_prev"`
	HasNext bool    `json:"has_next"`
}

// Presenter tracks the visible window, the scroll offset and which
// thumbnails exist. It is owned by the application loop.
type Presenter struct {
	total  int
	size   int
	start  int
	scroll int
	shown  map[int]bool
}

// New returns a presenter over total pages with windows of size pages.
func New(total, size int) *Presenter {
	if size <= 0 {
		size = 30
	}
	if total < 0 {
		total = 0
	}
	return &Presenter{total: total, size: size, shown: make(map[int]bool)}
}

// Window returns the half-open page interval of the current window.
func (p *Presenter) Window() (start, end int) {
	end = p.start + p.size
	if end > p.total {
		end = p.total
	}
	return p.start, end
}

// NextPage moves to the following window. It is a no-op on the last one.
func (p *Presenter) NextPage() bool {
	if p.start+p.size >= p.total {
		return false
	}
	p.start += p.size
	p.scroll = 0
	return true
}

// PrevPage moves to the preceding window. It is a no-op on the first one.
func (p *Presenter) PrevPage() bool {
	if p.start == 0 {
		return false
	}
	p.start -= p.size
	if p.start < 0 {
		p.start = 0
	}
	p.scroll = 0
	return true
}

// Reconcile brings the materialized set in line with the free pages of the
// current window. It returns the pages whose thumbnails were created and
// destroyed. The scroll offset is reset to the top even when nothing changed.
func (p *Presenter) Reconcile(isFree func(page int) bool) (created, destroyed []int) {
	start, end := p.Window()
	for page := range p.shown {
		if page < start || page >= end || !isFree(page) {
			delete(p.shown, page)
			destroyed = append(destroyed, page)
		}
	}
	for page := start; page < end; page++ {
		if !p.shown[page] && isFree(page) {
			p.shown[page] = true
			created = append(created, page)
		}
	}
	sort.Ints(destroyed)
	p.scroll = 0
	return created, destroyed
}

// Shown reports whether page currently has a thumbnail.
func (p *Presenter) Shown(page int) bool { return p.shown[page] }

// Scroll moves the offset by delta rows, clamped to the grid.
func (p *Presenter) Scroll(delta int) int {
	p.scroll += delta
	if limit := p.maxScroll(); p.scroll > limit {
		p.scroll = limit
	}
	if p.scroll < 0 {
		p.scroll = 0
	}
	return p.scroll
}

func (p *Presenter) maxScroll() int {
	rows := (len(p.shown) + Columns - 1) / Columns
	if rows == 0 {
		return 0
	}
	return rows - 1
}

// View projects the current state. pending is the page awaiting its pair,
// or -1.
func (p *Presenter) View(pending int) View {
	start, end := p.Window()
	v := View{
		Start:   start,
		End:     end,
		Total:   p.total,
		Scroll:  p.scroll,
		HasPrev: start > 0,
		HasNext: end < p.total,
		Thumbs:  make([]Thumb, 0, len(p.shown)),
	}
	if p.total == 0 {
		v.Label = "No document loaded"
	} else {
		v.Label = fmt.Sprintf("Pages %d-%d of %d", start+1, end, p.total)
	}
	for page := start; page < end; page++ {
		if !p.shown[page] {
			continue
		}
		v.Thumbs = append(v.Thumbs, Thumb{Page: page, Label: fmt.Sprintf("Page %d", page+1), Selected: page == pending})
	}
	return v
}
