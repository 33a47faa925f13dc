package model

import "time"

// PipelineRun aggregates all targets processed in one invocation.
type PipelineRun struct {
	ID         string     `json:"id"`
	Targets    []*Target  `json:"targets"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitzero"`
	Usage      TokenUsage `json:"usage"`
}

// RunSummary reports per-status counts and failures grouped by kind.
type RunSummary struct {
	RunID      string               `json:"run_id"`
	Total      int                  `json:"total"`
	ByStatus   map[TargetStatus]int `json:"by_status"`
	Exported   int                  `json:"exported"`
	Failed     int                  `json:"failed"`
	Failures   map[FailureKind]int  `json:"failures,omitempty"`
	DurationMS int64                `json:"duration_ms"`
}

// Summary computes the run-level outcome.
func (r *PipelineRun) Summary() RunSummary {
	s := RunSummary{
		RunID:    r.ID,
		Total:    len(r.Targets),
		ByStatus: make(map[TargetStatus]int),
		Failures: make(map[FailureKind]int),
	}
	for _, t := range r.Targets {
		s.ByStatus[t.Status]++
		switch t.Status {
		case StatusExported:
			s.Exported++
		case StatusFailed:
			s.Failed++
			s.Failures[t.FailureKind]++
		}
	}
	if !r.FinishedAt.IsZero() {
		s.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return s
}

// Finalized reports whether every target has reached a terminal status.
func (r *PipelineRun) Finalized() bool {
	for _, t := range r.Targets {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}
