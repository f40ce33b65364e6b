// Package history keeps the record of publication runs: one row per run,
// one per country outcome and one per validation violation. Postgres is
// used when a database is configured; otherwise the recent runs live in
// memory.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/facility-etl/internal/publish"
	"github.com/JonMunkholm/facility-etl/internal/schema"
)

// RunSummary is the list view of a run.
type RunSummary struct {
	RunID        uuid.UUID      `json:"run_id"`
	Service      schema.Service `json:"service"`
	Trigger      string         `json:"trigger"`
	StartedAt    time.Time      `json:"started_at"`
	DurationMS   int64          `json:"duration_ms"`
	Changed      bool           `json:"changed"`
	Updated      int            `json:"updated"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	CombinedRows int            `json:"combined_rows"`
	WebRows      int            `json:"web_rows"`
	Error        string         `json:"error,omitempty"`
}

// Summarize reduces a run result to its summary.
func Summarize(res *publish.Result) RunSummary {
	return RunSummary{
		RunID:        res.RunID,
		Service:      res.Service,
		Trigger:      res.Trigger,
		StartedAt:    res.StartedAt,
		DurationMS:   res.Duration.Milliseconds(),
		Changed:      res.Changed,
		Updated:      res.Count(publish.StatusUpdated),
		Skipped:      res.Count(publish.StatusSkipped),
		Failed:       res.Count(publish.StatusFailed),
		CombinedRows: res.CombinedRows,
		WebRows:      res.WebRows,
		Error:        res.Error,
	}
}

// Lister lists recent runs, newest first. An empty service lists all.
type Lister interface {
	ListRuns(ctx context.Context, service schema.Service, limit int) ([]RunSummary, error)
}

// Memory is the in-process history used without a database.
type Memory struct {
	*publish.MemoryRecorder
}

// NewMemory keeps the last limit runs.
func NewMemory(limit int) *Memory {
	return &Memory{MemoryRecorder: publish.NewMemoryRecorder(limit)}
}

func (m *Memory) ListRuns(_ context.Context, service schema.Service, limit int) ([]RunSummary, error) {
	var out []RunSummary
	for _, res := range m.Runs(0) {
		if service != "" && res.Service != service {
			continue
		}
		out = append(out, Summarize(res))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
