// Package postgres contains the PostgreSQL implementations of the storage
// interfaces defined beside the services that consume them.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
)

// EventRepo implements events.Store against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event store.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// FindEnrollmentByMessageID resolves the enrollment correlated to an
// outbound provider message id on the given channel.
func (r *EventRepo) FindEnrollmentByMessageID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.CampaignEnrollment, error) {
	e := &domain.CampaignEnrollment{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, instance_id, contact_email, COALESCE(contact_meta, '{}'::jsonb),
		       channel, provider_message_id, current_step, status, next_action_at,
		       created_at, updated_at
		FROM campaign_enrollments
		WHERE channel = $1 AND provider_message_id = $2
	`, channel, providerMessageID).Scan(
		&e.ID, &e.InstanceID, &e.ContactEmail, &e.ContactMeta,
		&e.Channel, &e.ProviderMessageID, &e.CurrentStep, &e.Status, &e.NextActionAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, events.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment by message id: %w", err)
	}
	return e, nil
}

// ApplyEvent persists one normalized event and applies its delta atomically.
//
// The transaction runs at READ COMMITTED and takes an exclusive row lock on
// the owning campaign instance, which serializes all counter writers for
// that instance. The event insert is a findOrCreate on the dedup key; when
// the row already existed the transaction commits with no counter change.
// Counter increments are database-side expressions (col = col + 1), never
// read-modify-write in application memory.
func (r *EventRepo) ApplyEvent(ctx context.Context, ev *domain.CampaignEvent) (created bool, err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("begin apply tx: %w", err)
	}
	defer tx.Rollback()

	var instanceStatus domain.InstanceStatus
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM campaign_instances WHERE id = $1 FOR UPDATE
	`, ev.InstanceID).Scan(&instanceStatus)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("campaign instance %s not found", ev.InstanceID)
	}
	if err != nil {
		return false, fmt.Errorf("lock instance: %w", err)
	}

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}

	inserted, err := insertEvent(ctx, tx, ev)
	if err != nil {
		return false, err
	}
	if !inserted {
		// Duplicate delivery. Commit so the row lock drops promptly.
		return false, tx.Commit()
	}

	if col := ev.EventType.CounterColumn(); col != "" {
		// col comes from a fixed switch on EventType, never from input.
		q := fmt.Sprintf(`UPDATE campaign_instances SET %s = %s + 1, updated_at = NOW() WHERE id = $1`, col, col)
		if _, err := tx.ExecContext(ctx, q, ev.InstanceID); err != nil {
			return false, fmt.Errorf("increment %s: %w", col, err)
		}
	}

	if next := ev.EventType.EnrollmentTransition(); next != "" {
		_, err := tx.ExecContext(ctx, `
			UPDATE campaign_enrollments SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = 'active'
		`, next, ev.EnrollmentID)
		if err != nil {
			return false, fmt.Errorf("transition enrollment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit apply tx: %w", err)
	}
	return true, nil
}

// insertEvent performs the findOrCreate. Events with a provider event id
// dedup through the partial unique index; events without one dedup on
// (enrollment_id, event_type, timestamp), which is safe because the caller
// holds the instance row lock.
func insertEvent(ctx context.Context, tx *sql.Tx, ev *domain.CampaignEvent) (bool, error) {
	const insert = `
		INSERT INTO campaign_events
			(id, enrollment_id, instance_id, event_type, channel, provider,
			 provider_event_id, provider_message_id, step_number, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if ev.ProviderEventID != nil {
		res, err := tx.ExecContext(ctx, insert+`
			ON CONFLICT (provider_event_id) WHERE provider_event_id IS NOT NULL DO NOTHING`,
			ev.ID, ev.EnrollmentID, ev.InstanceID, ev.EventType, ev.Channel, ev.Provider,
			ev.ProviderEventID, ev.ProviderMessageID, ev.StepNumber, ev.Timestamp, ev.Metadata)
		if err != nil {
			return false, fmt.Errorf("insert event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("insert event rows: %w", err)
		}
		return n == 1, nil
	}

	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM campaign_events
			WHERE enrollment_id = $1 AND event_type = $2 AND timestamp = $3
		)`, ev.EnrollmentID, ev.EventType, ev.Timestamp).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event exists: %w", err)
	}
	if exists {
		return false, nil
	}
	_, err = tx.ExecContext(ctx, insert,
		ev.ID, ev.EnrollmentID, ev.InstanceID, ev.EventType, ev.Channel, ev.Provider,
		nil, ev.ProviderMessageID, ev.StepNumber, ev.Timestamp, ev.Metadata)
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	return true, nil
}

// GetInstance returns a campaign instance with its counters. Used by the
// admin surface and tests; counter mutation happens only in ApplyEvent.
func (r *EventRepo) GetInstance(ctx context.Context, id uuid.UUID) (*domain.CampaignInstance, error) {
	i := &domain.CampaignInstance{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, template_id, owner_id, status, provider, COALESCE(settings, '{}'::jsonb),
		       total_sent, total_delivered, total_opened, total_clicked,
		       total_replied, total_bounced, total_unsubscribed, total_errored,
		       started_at, paused_at, completed_at, created_at, updated_at
		FROM campaign_instances
		WHERE id = $1
	`, id).Scan(
		&i.ID, &i.TemplateID, &i.OwnerID, &i.Status, &i.Provider, &i.Settings,
		&i.TotalSent, &i.TotalDelivered, &i.TotalOpened, &i.TotalClicked,
		&i.TotalReplied, &i.TotalBounced, &i.TotalUnsubscribed, &i.TotalErrored,
		&i.StartedAt, &i.PausedAt, &i.CompletedAt, &i.CreatedAt, &i.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("campaign instance %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return i, nil
}
