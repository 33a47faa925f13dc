package store

import (
	"context"
	"time"

	"github.com/sells-group/prospector/internal/model"
)

// RunRecord is a persisted pipeline run.
type RunRecord struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Summary    *model.RunSummary `json:"summary,omitempty"`
}

// TargetRecord is a persisted target snapshot.
type TargetRecord struct {
	ID          string             `json:"id"`
	RunID       string             `json:"run_id"`
	URL         string             `json:"url"`
	Status      model.TargetStatus `json:"status"`
	FailureKind model.FailureKind  `json:"failure_kind,omitempty"`
	LastErr     string             `json:"last_error,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Store persists run history and per-target status transitions. Writes
// are best-effort from the coordinator's perspective: a store failure is
// logged and never fails the pipeline.
type Store interface {
	CreateRun(ctx context.Context, run *model.PipelineRun) error
	FinishRun(ctx context.Context, run *model.PipelineRun) error
	UpsertTarget(ctx context.Context, runID string, target *model.Target) error

	GetRun(ctx context.Context, runID string) (*RunRecord, []TargetRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}
