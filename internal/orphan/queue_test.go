package orphan

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueue(client)
}

func testEvent(msgID string) *domain.CampaignEvent {
	return &domain.CampaignEvent{
		EventType:         domain.EventDelivered,
		Channel:           domain.ChannelEmail,
		Provider:          "lemlist",
		ProviderMessageID: msgID,
		Timestamp:         time.Now().UTC(),
	}
}

func TestQueue_EnqueueNotDueImmediately(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testEvent("msg_1")))

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// First retry is due after the initial backoff, not right away.
	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueue_PopDueRemovesEntries(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	e := &Entry{ID: "e1", Event: testEvent("msg_1"), EnqueuedAt: time.Now().UTC()}
	require.NoError(t, q.push(ctx, e, -time.Second))

	entries, err := q.PopDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "msg_1", entries[0].Event.ProviderMessageID)

	// Pop is destructive; a second poll finds nothing.
	entries, err = q.PopDue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_PopDueHonorsLimit(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := &Entry{ID: string(rune('a' + i)), Event: testEvent("msg"), EnqueuedAt: time.Now().UTC()}
		require.NoError(t, q.push(ctx, e, -time.Second))
	}

	entries, err := q.PopDue(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestQueue_RequeueRejectsExhausted(t *testing.T) {
	q := newTestQueue(t)
	e := &Entry{ID: "e1", Event: testEvent("msg_1"), Attempts: MaxAttempts}

	err := q.Requeue(context.Background(), e)
	require.Error(t, err)
}

func TestBackoffSchedule(t *testing.T) {
	want := []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second, 300 * time.Second}
	assert.Equal(t, want, backoffSchedule)
	assert.Equal(t, 4, MaxAttempts)
	assert.Len(t, backoffSchedule, MaxAttempts)
}
