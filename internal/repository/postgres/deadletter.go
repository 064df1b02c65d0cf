package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// DeadLetterRepo stores webhook events that exhausted the orphan retry
// schedule, for admin inspection and replay.
type DeadLetterRepo struct{ db *sql.DB }

// NewDeadLetterRepo creates a Postgres-backed dead letter store.
func NewDeadLetterRepo(db *sql.DB) *DeadLetterRepo { return &DeadLetterRepo{db: db} }

// DeadLetterFilter controls ListDLQ pagination and filtering.
type DeadLetterFilter struct {
	Provider string
	Status   domain.DeadLetterStatus
	Limit    int
	Offset   int
}

// Insert writes one dead-lettered event.
func (r *DeadLetterRepo) Insert(ctx context.Context, dl *domain.DeadLetterEvent) error {
	if dl.ID == uuid.Nil {
		dl.ID = uuid.New()
	}
	if dl.Status == "" {
		dl.Status = domain.DeadLetterFailed
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dead_letter_events (id, provider, raw_payload, signature, failure_reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, dl.ID, dl.Provider, dl.RawPayload, dl.Signature, dl.FailureReason, dl.Status)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// List returns dead-lettered events newest first.
func (r *DeadLetterRepo) List(ctx context.Context, f DeadLetterFilter) ([]domain.DeadLetterEvent, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT id, provider, raw_payload, COALESCE(signature,''), failure_reason, status, created_at, replayed_at
		FROM dead_letter_events
		WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if f.Provider != "" {
		q += fmt.Sprintf(" AND provider = $%d", idx)
		args = append(args, f.Provider)
		idx++
	}
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var out []domain.DeadLetterEvent
	for rows.Next() {
		var dl domain.DeadLetterEvent
		if err := rows.Scan(&dl.ID, &dl.Provider, &dl.RawPayload, &dl.Signature, &dl.FailureReason, &dl.Status, &dl.CreatedAt, &dl.ReplayedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

// ClaimForReplay flips the given failed entries to replaying and returns
// them. Entries already replaying or replayed are skipped, so concurrent
// admin replays do not double-process.
func (r *DeadLetterRepo) ClaimForReplay(ctx context.Context, ids []uuid.UUID) ([]domain.DeadLetterEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE dead_letter_events
		SET status = 'replaying'
		WHERE id = ANY($1) AND status = 'failed'
		RETURNING id, provider, raw_payload, COALESCE(signature,''), failure_reason, status, created_at, replayed_at
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("claim dead letters: %w", err)
	}
	defer rows.Close()

	var out []domain.DeadLetterEvent
	for rows.Next() {
		var dl domain.DeadLetterEvent
		if err := rows.Scan(&dl.ID, &dl.Provider, &dl.RawPayload, &dl.Signature, &dl.FailureReason, &dl.Status, &dl.CreatedAt, &dl.ReplayedAt); err != nil {
			return nil, fmt.Errorf("scan claimed dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}

// MarkReplayed records a successful replay.
func (r *DeadLetterRepo) MarkReplayed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dead_letter_events
		SET status = 'replayed', replayed_at = NOW()
		WHERE id = $1 AND status = 'replaying'
	`, id)
	if err != nil {
		return fmt.Errorf("mark replayed: %w", err)
	}
	return nil
}

// MarkFailed returns a replaying entry to failed after an unsuccessful
// replay attempt.
func (r *DeadLetterRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE dead_letter_events
		SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'replaying'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
