package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// DeadLetterStore is the slice of the dead letter repository the replayer
// needs. Claiming flips failed entries to replaying so concurrent admin
// replays cannot double-process.
type DeadLetterStore interface {
	ClaimForReplay(ctx context.Context, ids []uuid.UUID) ([]domain.DeadLetterEvent, error)
	MarkReplayed(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// ReplayResult summarizes one admin replay request.
type ReplayResult struct {
	Requested int               `json:"requested"`
	Claimed   int               `json:"claimed"`
	Replayed  int               `json:"replayed"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Replayer re-runs dead-lettered payloads through the pipeline. Replay is
// admin-initiated, so the stored payload is trusted and signature
// verification does not run again.
type Replayer struct {
	dlq     DeadLetterStore
	store   Store
	orphans OrphanEnqueuer
}

// NewReplayer wires a replayer over the dead letter store and the live
// pipeline dependencies.
func NewReplayer(dlq DeadLetterStore, store Store, orphans OrphanEnqueuer) *Replayer {
	return &Replayer{dlq: dlq, store: store, orphans: orphans}
}

// Replay claims the given dead letters and pushes each back through
// normalization and application. An entry whose enrollment is still missing
// re-enters the orphan queue and counts as replayed; entries already
// replaying or replayed are skipped.
func (r *Replayer) Replay(ctx context.Context, ids []uuid.UUID) (*ReplayResult, error) {
	claimed, err := r.dlq.ClaimForReplay(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("claim dead letters: %w", err)
	}

	res := &ReplayResult{
		Requested: len(ids),
		Claimed:   len(claimed),
		Errors:    map[string]string{},
	}

	for _, dl := range claimed {
		if err := r.replayOne(ctx, &dl); err != nil {
			res.Failed++
			res.Errors[dl.ID.String()] = err.Error()
			if mErr := r.dlq.MarkFailed(ctx, dl.ID, err.Error()); mErr != nil {
				logger.Error("[Replay] mark failed errored", "dead_letter_id", dl.ID.String(), "error", mErr.Error())
			}
			continue
		}
		res.Replayed++
		if mErr := r.dlq.MarkReplayed(ctx, dl.ID); mErr != nil {
			logger.Error("[Replay] mark replayed errored", "dead_letter_id", dl.ID.String(), "error", mErr.Error())
		}
	}

	logger.Info("[Replay] replay finished",
		"requested", res.Requested, "claimed", res.Claimed, "replayed", res.Replayed, "failed", res.Failed)
	return res, nil
}

func (r *Replayer) replayOne(ctx context.Context, dl *domain.DeadLetterEvent) error {
	ev, err := Normalize(dl.Provider, dl.RawPayload)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	enrollment, err := r.store.FindEnrollmentByMessageID(ctx, ev.Channel, ev.ProviderMessageID)
	if errors.Is(err, ErrEnrollmentNotFound) {
		// Still orphaned; hand it back to the retry queue.
		return r.orphans.Enqueue(ctx, ev)
	}
	if err != nil {
		return fmt.Errorf("find enrollment: %w", err)
	}

	ev.EnrollmentID = enrollment.ID
	ev.InstanceID = enrollment.InstanceID
	ev.StepNumber = enrollment.CurrentStep

	// A duplicate apply means the event landed through another path since
	// dead-lettering; that still counts as replayed.
	if _, err := r.store.ApplyEvent(ctx, ev); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}
