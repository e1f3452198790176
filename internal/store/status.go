// Package store keeps job status records for loads and exports.
package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Job states.
const (
	StateRunning   = "running"
	StateSuccess   = "success"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Job kinds.
const (
	KindLoad   = "load"
	KindExport = "export"
)

type Status struct {
	ID       string                 `json:"id"`
	Kind     string                 `json:"kind"`
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message"`
	Start    *time.Time             `json:"start_time,omitempty"`
	End      *time.Time             `json:"end_time,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Done reports whether the job reached a final state.
func (s Status) Done() bool {
	switch s.Status {
	case StateSuccess, StateFailed, StateCancelled:
		return true
	}
	return false
}

// StatusStore persists job status records.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st Status) error
	Get(ctx context.Context, jobID string) (Status, bool, error)
	Close() error
}

// Memory is an in-process StatusStore used when no Redis is configured.
// It keeps at most limit records, dropping the oldest.
type Memory struct {
	mu    sync.Mutex
	jobs  map[string]Status
	order []string
	limit int
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 256
	}
	return &Memory{jobs: make(map[string]Status), limit: limit}
}

func (m *Memory) Set(_ context.Context, jobID string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		m.order = append(m.order, jobID)
		if len(m.order) > m.limit {
			delete(m.jobs, m.order[0])
			m.order = m.order[1:]
		}
	}
	st.ID = jobID
	st.Metadata = copyMeta(st.Metadata)
	m.jobs[jobID] = st
	return nil
}

func (m *Memory) Get(_ context.Context, jobID string) (Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.jobs[jobID]
	if !ok {
		return Status{}, false, nil
	}
	st.Metadata = copyMeta(st.Metadata)
	return st, true, nil
}

func (m *Memory) Close() error { return nil }

func copyMeta(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	dst := make(map[string]interface{}, len(src))
	for _, k := range keys {
		dst[k] = src[k]
	}
	return dst
}
