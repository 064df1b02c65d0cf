// Package events implements the campaign event pipeline: webhook ingestion,
// signature verification, provider payload normalization, and atomic
// application of deltas to campaign counters and enrollment state.
//
// The pipeline exposes exactly one operation to external callers,
// Pipeline.IngestWebhook. Everything else in this package exists to serve it.
package events

import (
	"context"
	"errors"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// Sentinel errors surfaced to the HTTP layer. Handlers map
// ErrInvalidSignature and ErrUnknownProvider to 401, ErrMalformedPayload
// to 400; anything else is a server-side failure the provider should retry.
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownProvider  = errors.New("unknown provider")
)

// ErrEnrollmentNotFound is returned by Store implementations when no
// enrollment matches a (channel, provider_message_id) pair. The pipeline
// routes such events to the orphan queue instead of failing.
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// Store is the pipeline's data access contract. Implementations must be safe
// for concurrent use.
type Store interface {
	// FindEnrollmentByMessageID locates the enrollment that dispatched the
	// outbound message the event refers to. Returns ErrEnrollmentNotFound
	// when no enrollment carries the id yet.
	FindEnrollmentByMessageID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.CampaignEnrollment, error)

	// ApplyEvent persists the event and applies its delta in one
	// transaction: instance row lock, findOrCreate on the dedup key,
	// SQL-side counter increment, enrollment status transition. Returns
	// created=false when the event already existed (idempotent no-op).
	ApplyEvent(ctx context.Context, ev *domain.CampaignEvent) (created bool, err error)
}

// OrphanEnqueuer accepts normalized events whose enrollment is not yet
// persisted. The queue retries them on a backoff schedule.
type OrphanEnqueuer interface {
	Enqueue(ctx context.Context, ev *domain.CampaignEvent) error
}
