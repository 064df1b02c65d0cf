package orphan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/pkg/distlock"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

const popBatchSize = 100

// Resolver is the subset of the event store the processor needs.
type Resolver interface {
	FindEnrollmentByMessageID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.CampaignEnrollment, error)
	ApplyEvent(ctx context.Context, ev *domain.CampaignEvent) (created bool, err error)
}

// DeadLetterer persists exhausted entries for admin replay.
type DeadLetterer interface {
	Insert(ctx context.Context, dl *domain.DeadLetterEvent) error
}

// Processor polls the queue and retries parked events. A distributed lock
// keeps at most one poller active across replicas; the others tick idle.
type Processor struct {
	queue    *Queue
	store    Resolver
	dlq      DeadLetterer
	lock     distlock.DistLock
	interval time.Duration
	drain    time.Duration

	cancel context.CancelFunc
	done   chan struct{}

	resolved      int64
	requeued      int64
	deadLettered  int64
	lastProcessed atomic.Int64 // unix milli, 0 until first resolution
}

// NewProcessor wires a queue processor. interval is the poll tick and drain
// the wall-clock budget Stop spends finishing in-flight work.
func NewProcessor(queue *Queue, store Resolver, dlq DeadLetterer, lock distlock.DistLock, interval, drain time.Duration) *Processor {
	return &Processor{
		queue:    queue,
		store:    store,
		dlq:      dlq,
		lock:     lock,
		interval: interval,
		drain:    drain,
	}
}

// Start launches the poll loop. Safe to call once.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		logger.Info("[OrphanQueue] processor started", "interval", p.interval.String())

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

// Disconnect halts the poll loop without draining. Idempotent and safe from
// any shutdown path; the Redis client itself belongs to the caller.
func (p *Processor) Disconnect() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Stop halts polling and drains due entries within the drain budget. Entries
// still pending after the budget stay in Redis for the next instance.
func (p *Processor) Stop() {
	if p.cancel == nil {
		return
	}
	p.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), p.drain)
	defer cancel()

	n := p.processDue(ctx)
	logger.Info("[OrphanQueue] processor stopped", "drained", n)
}

func (p *Processor) tick(ctx context.Context) {
	acquired, err := p.lock.Acquire(ctx)
	if err != nil {
		logger.Warn("[OrphanQueue] lock acquire failed", "error", err.Error())
		return
	}
	if !acquired {
		return
	}
	defer p.lock.Release(ctx)

	p.processDue(ctx)
}

// processDue drains everything currently due, in batches. Returns how many
// entries were handled.
func (p *Processor) processDue(ctx context.Context) int {
	handled := 0
	for {
		entries, err := p.queue.PopDue(ctx, popBatchSize)
		if err != nil {
			logger.Error("[OrphanQueue] pop failed", "error", err.Error())
			return handled
		}
		if len(entries) == 0 {
			return handled
		}
		for i, e := range entries {
			if ctx.Err() != nil {
				// Out of drain budget. PopDue already removed the batch from
				// Redis, so everything unprocessed must go back untouched.
				for _, rest := range entries[i:] {
					p.requeue(ctx, rest)
				}
				return handled
			}
			p.processEntry(ctx, e)
			handled++
		}
	}
}

func (p *Processor) processEntry(ctx context.Context, e *Entry) {
	ev := e.Event
	enrollment, err := p.store.FindEnrollmentByMessageID(ctx, ev.Channel, ev.ProviderMessageID)
	if err == nil {
		ev.EnrollmentID = enrollment.ID
		ev.InstanceID = enrollment.InstanceID
		ev.StepNumber = enrollment.CurrentStep
		if _, err = p.store.ApplyEvent(ctx, ev); err == nil {
			atomic.AddInt64(&p.resolved, 1)
			p.lastProcessed.Store(time.Now().UnixMilli())
			logger.Info("[OrphanQueue] event resolved",
				"entry_id", e.ID, "provider", ev.Provider, "event_type", string(ev.EventType), "attempts", e.Attempts+1)
			return
		}
	}

	e.Attempts++
	if errors.Is(err, events.ErrEnrollmentNotFound) && e.Attempts < MaxAttempts {
		if p.requeue(ctx, e) {
			atomic.AddInt64(&p.requeued, 1)
			logger.Debug("[OrphanQueue] event requeued", "entry_id", e.ID, "attempts", e.Attempts)
		}
		return
	}
	if !errors.Is(err, events.ErrEnrollmentNotFound) && e.Attempts < MaxAttempts {
		// Transient store failure; retry on the same schedule.
		if p.requeue(ctx, e) {
			atomic.AddInt64(&p.requeued, 1)
			logger.Warn("[OrphanQueue] retry after store error", "entry_id", e.ID, "attempts", e.Attempts, "error", err.Error())
		}
		return
	}

	p.deadLetter(ctx, e, err)
}

// requeue writes an entry back to Redis. The entry is already gone from the
// sorted set, so a failed write loses it; when ctx is dead (shutdown, drain
// budget spent) the write runs on its own short deadline instead.
func (p *Processor) requeue(ctx context.Context, e *Entry) bool {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := p.queue.Requeue(ctx, e); err != nil {
		logger.Error("[OrphanQueue] requeue failed", "entry_id", e.ID, "error", err.Error())
		return false
	}
	return true
}

func (p *Processor) deadLetter(ctx context.Context, e *Entry, cause error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	raw := e.Event.Metadata
	if len(raw) == 0 {
		raw, _ = json.Marshal(e.Event)
	}
	reason := "enrollment not found after retry schedule"
	if cause != nil && !errors.Is(cause, events.ErrEnrollmentNotFound) {
		reason = fmt.Sprintf("apply failed after retry schedule: %v", cause)
	}
	dl := &domain.DeadLetterEvent{
		Provider:      e.Event.Provider,
		RawPayload:    raw,
		FailureReason: reason,
		Status:        domain.DeadLetterFailed,
	}
	if err := p.dlq.Insert(ctx, dl); err != nil {
		logger.Error("[OrphanQueue] dead letter insert failed", "entry_id", e.ID, "error", err.Error())
		return
	}
	atomic.AddInt64(&p.deadLettered, 1)
	logger.Warn("[OrphanQueue] event dead-lettered",
		"entry_id", e.ID, "provider", e.Event.Provider, "reason", reason)
}

// Stats returns processor counters since start.
func (p *Processor) Stats() map[string]int64 {
	return map[string]int64{
		"orphans_resolved":      atomic.LoadInt64(&p.resolved),
		"orphans_requeued":      atomic.LoadInt64(&p.requeued),
		"orphans_dead_lettered": atomic.LoadInt64(&p.deadLettered),
	}
}

// Health reports queue depth and processing liveness for the health endpoint.
func (p *Processor) Health(ctx context.Context) map[string]interface{} {
	h := map[string]interface{}{"healthy": true}

	pending, err := p.queue.PendingCount(ctx)
	if err != nil {
		h["healthy"] = false
		h["error"] = err.Error()
		return h
	}
	h["pending_count"] = pending

	if ts := p.lastProcessed.Load(); ts > 0 {
		h["last_processed_at"] = time.UnixMilli(ts).UTC().Format(time.RFC3339)
	}
	return h
}
