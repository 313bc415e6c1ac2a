// Package runs tracks pipeline executions for API callers: each run is a
// registry record pointing at its (eventual) result.
package runs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/bankflow/internal/pipeline"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Status mirrors the orchestrator's run states plus the pre-execution
// pending state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one registry record. The Result pointer is nil until the pipeline
// finishes.
type Run struct {
	RunID       string           `json:"run_id"`
	Status      Status           `json:"status"`
	SourceKind  string           `json:"source_kind"`
	Source      string           `json:"source,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`
}

// Filter narrows List results.
type Filter struct {
	Status Status
	Limit  int
}

// Store is the registry boundary: create/get/list/delete plus the status
// transitions executed as a run progresses.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Get(ctx context.Context, runID string) (*Run, error)
	List(ctx context.Context, filter Filter) ([]*Run, error)
	Delete(ctx context.Context, runID string) error
	Update(ctx context.Context, run *Run) error
}
