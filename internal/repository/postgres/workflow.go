package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/workflow"
)

// WorkflowRepo implements workflow.Store against PostgreSQL. The workflow
// module owns the workflow_executions and workflow_failures schemas.
type WorkflowRepo struct{ db *sql.DB }

// NewWorkflowRepo creates a Postgres-backed workflow state store.
func NewWorkflowRepo(db *sql.DB) *WorkflowRepo { return &WorkflowRepo{db: db} }

// CreateExecution inserts a running execution. Idempotent on id so a retried
// start does not duplicate rows.
func (r *WorkflowRepo) CreateExecution(ctx context.Context, e *domain.WorkflowExecution) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workflow_executions (id, workflow_name, status, context, current_step, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.WorkflowName, e.Status, e.Context, e.CurrentStep, e.StartedAt)
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

// SaveProgress persists the context and the index of the last completed step.
func (r *WorkflowRepo) SaveProgress(ctx context.Context, id uuid.UUID, contextJSON json.RawMessage, currentStep int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET context = $2, current_step = $3
		WHERE id = $1 AND status = 'running'
	`, id, contextJSON, currentStep)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Complete flips a running execution to completed with its final context.
// Completed and failed are terminal; the status guard keeps them immutable.
func (r *WorkflowRepo) Complete(ctx context.Context, id uuid.UUID, contextJSON json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = 'completed', context = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id, contextJSON)
	if err != nil {
		return fmt.Errorf("complete execution: %w", err)
	}
	return nil
}

// Fail atomically flips the execution to failed and writes the audit
// failure record in the same transaction.
func (r *WorkflowRepo) Fail(ctx context.Context, id uuid.UUID, failedStep, errMsg string, contextJSON json.RawMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fail tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_executions
		SET status = 'failed', error = $2, context = $3, completed_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id, errMsg, contextJSON)
	if err != nil {
		return fmt.Errorf("fail execution: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_failures (workflow_id, failed_step, error_message, context)
		VALUES ($1, $2, $3, $4)
	`, id, failedStep, errMsg, contextJSON)
	if err != nil {
		return fmt.Errorf("insert failure record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fail tx: %w", err)
	}
	return nil
}

// Get returns one execution.
func (r *WorkflowRepo) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowExecution, error) {
	e := &domain.WorkflowExecution{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workflow_name, status, COALESCE(context, '{}'::jsonb),
		       current_step, COALESCE(error,''), started_at, completed_at
		FROM workflow_executions
		WHERE id = $1
	`, id).Scan(&e.ID, &e.WorkflowName, &e.Status, &e.Context, &e.CurrentStep, &e.Error, &e.StartedAt, &e.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, workflow.ErrExecutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return e, nil
}

// DeleteCompletedBefore removes completed executions older than cutoff and
// returns how many were deleted. Failed executions are kept for audit.
func (r *WorkflowRepo) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM workflow_executions
		WHERE status = 'completed' AND completed_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup executions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup rows affected: %w", err)
	}
	return n, nil
}

// Stats aggregates execution outcomes for one workflow name since the
// given time.
func (r *WorkflowRepo) Stats(ctx context.Context, name string, since time.Time) (*workflow.Stats, error) {
	s := &workflow.Stats{WorkflowName: name}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'running'),
		       COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at))) FILTER (WHERE status = 'completed'), 0)
		FROM workflow_executions
		WHERE workflow_name = $1 AND started_at >= $2
	`, name, since).Scan(&s.Total, &s.Completed, &s.Failed, &s.Running, &s.AvgDurationSeconds)
	if err != nil {
		return nil, fmt.Errorf("workflow stats: %w", err)
	}
	return s, nil
}
