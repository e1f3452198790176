// Package progress carries progress updates from background work to the
// interactive loop.
package progress

import (
	"context"
	"sync"
	"time"
)

// Stage names the kind of background work an update belongs to.
type Stage string

const (
	StageLoad   Stage = "load"
	StageExport Stage = "export"
)

// Update is one progress message. Percent is in [0, 100].
type Update struct {
	Stage   Stage     `json:"stage"`
	Percent float64   `json:"percent"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Reporter receives progress updates.
type Reporter interface {
	Report(Update)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Update)

func (f ReporterFunc) Report(u Update) { f(u) }

// Discard drops every update.
var Discard Reporter = ReporterFunc(func(Update) {})

// Monotonic wraps a reporter so the percent never decreases and never
// leaves [0, 100].
type Monotonic struct {
	mu   sync.Mutex
	next Reporter
	last float64
}

// NewMonotonic wraps next; a nil next discards.
func NewMonotonic(next Reporter) *Monotonic {
	if next == nil {
		next = Discard
	}
	return &Monotonic{next: next}
}

func (m *Monotonic) Report(u Update) {
	m.mu.Lock()
	if u.Percent < m.last {
		u.Percent = m.last
	}
	if u.Percent > 100 {
		u.Percent = 100
	}
	if u.Percent < 0 {
		u.Percent = 0
	}
	m.last = u.Percent
	m.mu.Unlock()
	if u.At.IsZero() {
		u.At = time.Now()
	}
	m.next.Report(u)
}

// Chan forwards updates onto a channel in the order they are reported,
// wrapping each one with wrap. A send blocks until the consumer takes it or
// ctx is done, in which case the update is dropped.
func Chan[T any](ctx context.Context, ch chan<- T, wrap func(Update) T) Reporter {
	return ReporterFunc(func(u Update) {
		select {
		case ch <- wrap(u):
		case <-ctx.Done():
		}
	})
}

// Percent returns done/total as a percentage; zero totals report 0.
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
