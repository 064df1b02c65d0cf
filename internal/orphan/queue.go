// Package orphan holds webhook events that arrived before their enrollment
// was persisted. Entries wait in a Redis sorted set keyed by due time and a
// background processor retries them on a fixed backoff schedule until the
// enrollment shows up or the schedule is exhausted.
package orphan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

const pendingKey = "orphan:pending"

// backoffSchedule is the delay before each resolution attempt. After the
// final attempt fails the entry moves to the dead letter store.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	300 * time.Second,
}

// MaxAttempts is the number of resolution attempts before dead-lettering,
// one per backoff slot.
const MaxAttempts = 4

// Entry is one parked event plus its retry bookkeeping. The whole entry is
// the ZSET member, so requeueing with a new attempt count replaces rather
// than duplicates it.
type Entry struct {
	ID         string               `json:"id"`
	Event      *domain.CampaignEvent `json:"event"`
	Attempts   int                  `json:"attempts"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// popDueScript atomically reads and removes entries whose due time has
// passed. Without the script two pollers could hand out the same entry
// between the range read and the removal.
var popDueScript = redis.NewScript(`
	local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
	for _, member in ipairs(due) do
		redis.call('ZREM', KEYS[1], member)
	end
	return due
`)

// Queue is the Redis-backed delayed queue. Safe for concurrent use.
type Queue struct {
	client *redis.Client
}

// NewQueue wraps an existing Redis client. go-redis dials lazily, so no
// connection opens until the first command.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue parks a freshly orphaned event. First retry is due after the
// initial backoff delay.
func (q *Queue) Enqueue(ctx context.Context, ev *domain.CampaignEvent) error {
	e := &Entry{
		ID:         uuid.NewString(),
		Event:      ev,
		Attempts:   0,
		EnqueuedAt: time.Now().UTC(),
	}
	return q.push(ctx, e, backoffSchedule[0])
}

// Requeue reschedules an entry after a failed resolution attempt. The
// caller increments Attempts before calling; the delay comes from the
// schedule slot for that attempt.
func (q *Queue) Requeue(ctx context.Context, e *Entry) error {
	if e.Attempts >= MaxAttempts {
		return fmt.Errorf("entry %s exhausted %d attempts", e.ID, e.Attempts)
	}
	return q.push(ctx, e, backoffSchedule[e.Attempts])
}

func (q *Queue) push(ctx context.Context, e *Entry, delay time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal orphan entry: %w", err)
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, pendingKey, redis.Z{Score: due, Member: string(data)}).Err(); err != nil {
		return fmt.Errorf("enqueue orphan entry: %w", err)
	}
	return nil
}

// PopDue removes and returns up to limit entries whose due time has passed.
func (q *Queue) PopDue(ctx context.Context, limit int) ([]*Entry, error) {
	now := time.Now().UnixMilli()
	res, err := popDueScript.Run(ctx, q.client, []string{pendingKey}, now, limit).Result()
	if err != nil {
		return nil, fmt.Errorf("pop due entries: %w", err)
	}

	members, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("pop due entries: unexpected reply type %T", res)
	}

	entries := make([]*Entry, 0, len(members))
	for _, m := range members {
		raw, ok := m.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			// A corrupt member would wedge the queue if requeued; drop it.
			continue
		}
		entries = append(entries, &e)
	}
	return entries, nil
}

// PendingCount returns the number of parked entries, due or not.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}
