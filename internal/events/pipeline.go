package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// DefaultIngestTimeout bounds one IngestWebhook call. Providers treat a
// timeout as retryable, so it is set to a normal HTTP request window.
const DefaultIngestTimeout = 5 * time.Second

// Outcome describes what happened to an accepted webhook.
type Outcome struct {
	// Duplicate is true when the event already existed and no counter moved.
	Duplicate bool
	// Orphaned is true when no enrollment was found and the event went to
	// the orphan queue. The caller still reports success to the provider.
	Orphaned bool
}

// Pipeline ingests raw provider webhooks. Safe for concurrent use; many
// webhook handlers may be in flight simultaneously.
type Pipeline struct {
	store   Store
	orphans OrphanEnqueuer
	secrets map[string]string // provider tag → webhook secret
	timeout time.Duration

	// Stats
	received   int64
	duplicates int64
	orphaned   int64
	rejected   int64
}

// NewPipeline creates an event pipeline. secrets maps provider tags to their
// webhook HMAC secrets; a provider without a secret cannot ingest.
func NewPipeline(store Store, orphans OrphanEnqueuer, secrets map[string]string) *Pipeline {
	return &Pipeline{
		store:   store,
		orphans: orphans,
		secrets: secrets,
		timeout: DefaultIngestTimeout,
	}
}

// SetTimeout overrides the per-call ingestion timeout.
func (p *Pipeline) SetTimeout(d time.Duration) { p.timeout = d }

// IngestWebhook transforms one raw provider webhook into a durable,
// deduplicated state change.
//
// rawBody must be the exact bytes as transmitted; HMAC verification is
// byte-sensitive. Signature verification runs before any parsing and a
// failure has no side effects. A missing enrollment routes the normalized
// event to the orphan queue and still succeeds; the provider must see
// success to stop redelivering.
//
// Error mapping for callers: ErrInvalidSignature and ErrUnknownProvider are
// authentication failures, ErrMalformedPayload is a client error, anything
// else is transient and the provider's redelivery supplies eventual
// consistency.
func (p *Pipeline) IngestWebhook(ctx context.Context, provider string, rawBody []byte, headers http.Header) (*Outcome, error) {
	secret, ok := p.secrets[provider]
	if !ok {
		atomic.AddInt64(&p.rejected, 1)
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	if err := VerifySignature(rawBody, headers.Get(SignatureHeader(provider)), secret); err != nil {
		atomic.AddInt64(&p.rejected, 1)
		logger.Warn("webhook signature rejected", "provider", provider, "body_bytes", len(rawBody))
		return nil, err
	}

	ev, err := Normalize(provider, rawBody)
	if err != nil {
		atomic.AddInt64(&p.rejected, 1)
		logger.Warn("webhook payload rejected", "provider", provider, "error", err.Error())
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	enrollment, err := p.store.FindEnrollmentByMessageID(ctx, ev.Channel, ev.ProviderMessageID)
	if errors.Is(err, ErrEnrollmentNotFound) {
		// Event arrived before the outbound dispatcher committed the
		// enrollment. Hold it durably and retry on the backoff schedule.
		if qerr := p.orphans.Enqueue(ctx, ev); qerr != nil {
			return nil, fmt.Errorf("enqueue orphan: %w", qerr)
		}
		atomic.AddInt64(&p.received, 1)
		atomic.AddInt64(&p.orphaned, 1)
		logger.Info("event orphaned", "provider", provider, "event_type", string(ev.EventType), "provider_message_id", ev.ProviderMessageID)
		return &Outcome{Orphaned: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("enrollment lookup: %w", err)
	}

	ev.EnrollmentID = enrollment.ID
	ev.InstanceID = enrollment.InstanceID
	if ev.StepNumber == 0 {
		ev.StepNumber = enrollment.CurrentStep
	}

	created, err := p.store.ApplyEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("apply event: %w", err)
	}

	atomic.AddInt64(&p.received, 1)
	if !created {
		atomic.AddInt64(&p.duplicates, 1)
	}
	return &Outcome{Duplicate: !created}, nil
}

// Stats returns ingestion counters for the health surface.
func (p *Pipeline) Stats() map[string]int64 {
	return map[string]int64{
		"events_received":   atomic.LoadInt64(&p.received),
		"events_duplicate":  atomic.LoadInt64(&p.duplicates),
		"events_orphaned":   atomic.LoadInt64(&p.orphaned),
		"webhooks_rejected": atomic.LoadInt64(&p.rejected),
	}
}
