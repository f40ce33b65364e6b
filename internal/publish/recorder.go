package publish

import (
	"context"
	"sync"
)

// Recorder persists run results. Failures are logged by the pipeline and
// never fail a run.
type Recorder interface {
	RecordRun(ctx context.Context, res *Result) error
}

// NopRecorder discards results.
type NopRecorder struct{}

func (NopRecorder) RecordRun(context.Context, *Result) error { return nil }

// MemoryRecorder keeps the most recent results in memory, newest first. It
// backs the run history when no database is configured.
type MemoryRecorder struct {
	mu    sync.RWMutex
	limit int
	runs  []*Result
}

// NewMemoryRecorder keeps at most limit runs; limit <= 0 means 100.
func NewMemoryRecorder(limit int) *MemoryRecorder {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryRecorder{limit: limit}
}

func (m *MemoryRecorder) RecordRun(_ context.Context, res *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append([]*Result{res}, m.runs...)
	if len(m.runs) > m.limit {
		m.runs = m.runs[:m.limit]
	}
	return nil
}

// Runs returns up to limit results, newest first.
func (m *MemoryRecorder) Runs(limit int) []*Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]*Result, limit)
	copy(out, m.runs[:limit])
	return out
}
