// Package workflow executes declarative, step-based prospect pipelines.
// Definitions are YAML documents listing ordered steps; each step names an
// action in the tool registry and a map of inputs that may reference earlier
// step results. Execution state persists for crash recovery.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// ErrExecutionNotFound is returned by Store implementations when no
// execution matches the given id.
var ErrExecutionNotFound = errors.New("workflow execution not found")

// Store persists execution state. The engine treats persistence as
// best-effort during a run; only resume and stats require it.
type Store interface {
	// CreateExecution inserts a running execution, idempotent on id.
	CreateExecution(ctx context.Context, e *domain.WorkflowExecution) error

	// SaveProgress records the context and last completed step number.
	SaveProgress(ctx context.Context, id uuid.UUID, contextJSON json.RawMessage, currentStep int) error

	// Complete flips a running execution to completed with its final context.
	Complete(ctx context.Context, id uuid.UUID, contextJSON json.RawMessage) error

	// Fail flips a running execution to failed and writes the
	// WorkflowFailure audit row in the same transaction.
	Fail(ctx context.Context, id uuid.UUID, failedStep, errMsg string, contextJSON json.RawMessage) error

	// Get returns one execution or ErrExecutionNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowExecution, error)

	// DeleteCompletedBefore removes completed executions older than cutoff.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Stats aggregates outcomes for one workflow name since the given time.
	Stats(ctx context.Context, name string, since time.Time) (*Stats, error)
}

// Stats summarizes execution outcomes for the admin surface.
type Stats struct {
	WorkflowName       string  `json:"workflow_name"`
	Total              int64   `json:"total"`
	Completed          int64   `json:"completed"`
	Failed             int64   `json:"failed"`
	Running            int64   `json:"running"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}
