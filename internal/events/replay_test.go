package events

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

type fakeDLQ struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*domain.DeadLetterEvent
	replayed []uuid.UUID
	failed   map[uuid.UUID]string
}

func newFakeDLQ() *fakeDLQ {
	return &fakeDLQ{
		entries: make(map[uuid.UUID]*domain.DeadLetterEvent),
		failed:  make(map[uuid.UUID]string),
	}
}

func (d *fakeDLQ) add(provider string, payload []byte) uuid.UUID {
	id := uuid.New()
	d.entries[id] = &domain.DeadLetterEvent{
		ID: id, Provider: provider, RawPayload: payload, Status: domain.DeadLetterFailed,
	}
	return id
}

func (d *fakeDLQ) ClaimForReplay(ctx context.Context, ids []uuid.UUID) ([]domain.DeadLetterEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DeadLetterEvent
	for _, id := range ids {
		dl, ok := d.entries[id]
		if !ok || dl.Status != domain.DeadLetterFailed {
			continue
		}
		dl.Status = domain.DeadLetterReplaying
		out = append(out, *dl)
	}
	return out, nil
}

func (d *fakeDLQ) MarkReplayed(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[id].Status = domain.DeadLetterReplayed
	d.replayed = append(d.replayed, id)
	return nil
}

func (d *fakeDLQ) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[id].Status = domain.DeadLetterFailed
	d.failed[id] = reason
	return nil
}

func TestReplay_AppliesResolvedEvents(t *testing.T) {
	store := newFakeStore()
	orphans := &fakeOrphans{}
	dlq := newFakeDLQ()
	r := NewReplayer(dlq, store, orphans)

	store.addEnrollment(domain.ChannelEmail, "msg_1")
	id := dlq.add("lemlist", []byte(`{"_id":"evt_1","type":"emailsDelivered","messageId":"msg_1"}`))

	res, err := r.Replay(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Claimed)
	assert.Equal(t, 1, res.Replayed)
	assert.Zero(t, res.Failed)
	require.Len(t, store.applied, 1)
	assert.Equal(t, domain.DeadLetterReplayed, dlq.entries[id].Status)
}

func TestReplay_StillOrphanedReenqueues(t *testing.T) {
	store := newFakeStore()
	orphans := &fakeOrphans{}
	dlq := newFakeDLQ()
	r := NewReplayer(dlq, store, orphans)

	id := dlq.add("lemlist", []byte(`{"_id":"evt_1","type":"emailsDelivered","messageId":"msg_unknown"}`))

	res, err := r.Replay(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Replayed)
	assert.Empty(t, store.applied)
	require.Len(t, orphans.entries, 1)
	assert.Equal(t, "msg_unknown", orphans.entries[0].ProviderMessageID)
	assert.Equal(t, domain.DeadLetterReplayed, dlq.entries[id].Status)
}

func TestReplay_MalformedPayloadFails(t *testing.T) {
	store := newFakeStore()
	dlq := newFakeDLQ()
	r := NewReplayer(dlq, store, &fakeOrphans{})

	id := dlq.add("lemlist", []byte(`not json at all`))

	res, err := r.Replay(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Replayed)
	assert.Contains(t, res.Errors[id.String()], "normalize")
	assert.Equal(t, domain.DeadLetterFailed, dlq.entries[id].Status)
	assert.NotEmpty(t, dlq.failed[id])
}

func TestReplay_SkipsNonFailedEntries(t *testing.T) {
	store := newFakeStore()
	dlq := newFakeDLQ()
	r := NewReplayer(dlq, store, &fakeOrphans{})

	id := dlq.add("lemlist", []byte(`{"_id":"evt_1","type":"emailsDelivered","messageId":"m"}`))
	dlq.entries[id].Status = domain.DeadLetterReplayed

	res, err := r.Replay(context.Background(), []uuid.UUID{id, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Requested)
	assert.Zero(t, res.Claimed)
}
