package events

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

type fakeStore struct {
	mu          sync.Mutex
	enrollments map[string]*domain.CampaignEnrollment // key: channel|message id
	applied     []*domain.CampaignEvent
	seen        map[string]bool // provider_event_id dedup
	applyErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		enrollments: make(map[string]*domain.CampaignEnrollment),
		seen:        make(map[string]bool),
	}
}

func (s *fakeStore) addEnrollment(channel domain.Channel, msgID string) *domain.CampaignEnrollment {
	e := &domain.CampaignEnrollment{
		ID:                uuid.New(),
		InstanceID:        uuid.New(),
		Channel:           channel,
		ProviderMessageID: &msgID,
		CurrentStep:       1,
		Status:            domain.EnrollmentActive,
	}
	s.mu.Lock()
	s.enrollments[string(channel)+"|"+msgID] = e
	s.mu.Unlock()
	return e
}

func (s *fakeStore) FindEnrollmentByMessageID(ctx context.Context, channel domain.Channel, msgID string) (*domain.CampaignEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[string(channel)+"|"+msgID]
	if !ok {
		return nil, ErrEnrollmentNotFound
	}
	return e, nil
}

func (s *fakeStore) ApplyEvent(ctx context.Context, ev *domain.CampaignEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return false, s.applyErr
	}
	if ev.ProviderEventID != nil {
		if s.seen[*ev.ProviderEventID] {
			return false, nil
		}
		s.seen[*ev.ProviderEventID] = true
	}
	s.applied = append(s.applied, ev)
	return true, nil
}

type fakeOrphans struct {
	mu      sync.Mutex
	entries []*domain.CampaignEvent
	err     error
}

func (q *fakeOrphans) Enqueue(ctx context.Context, ev *domain.CampaignEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.entries = append(q.entries, ev)
	return nil
}

const testSecret = "whsec_pipeline"

func newTestPipeline(store *fakeStore, orphans *fakeOrphans) *Pipeline {
	return NewPipeline(store, orphans, map[string]string{"lemlist": testSecret, "postmark": testSecret})
}

func signedHeaders(provider string, body []byte) http.Header {
	h := http.Header{}
	h.Set(SignatureHeader(provider), "sha256="+Sign(body, testSecret))
	return h
}

func TestIngestWebhook_HappyPath(t *testing.T) {
	store := newFakeStore()
	orphans := &fakeOrphans{}
	p := newTestPipeline(store, orphans)

	enrollment := store.addEnrollment(domain.ChannelEmail, "msg_1")
	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)

	out, err := p.IngestWebhook(context.Background(), "lemlist", body, signedHeaders("lemlist", body))
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.False(t, out.Orphaned)

	require.Len(t, store.applied, 1)
	assert.Equal(t, enrollment.ID, store.applied[0].EnrollmentID)
	assert.Equal(t, enrollment.InstanceID, store.applied[0].InstanceID)
	assert.Equal(t, enrollment.CurrentStep, store.applied[0].StepNumber)
}

func TestIngestWebhook_InvalidSignatureNoSideEffects(t *testing.T) {
	store := newFakeStore()
	orphans := &fakeOrphans{}
	p := newTestPipeline(store, orphans)

	store.addEnrollment(domain.ChannelEmail, "msg_1")
	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)

	h := http.Header{}
	h.Set(SignatureHeader("lemlist"), "sha256="+Sign(body, "wrong-secret"))

	_, err := p.IngestWebhook(context.Background(), "lemlist", body, h)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, store.applied)
	assert.Empty(t, orphans.entries)
}

func TestIngestWebhook_MissingSignatureHeader(t *testing.T) {
	p := newTestPipeline(newFakeStore(), &fakeOrphans{})
	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)

	_, err := p.IngestWebhook(context.Background(), "lemlist", body, http.Header{})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestIngestWebhook_UnknownProvider(t *testing.T) {
	p := newTestPipeline(newFakeStore(), &fakeOrphans{})

	_, err := p.IngestWebhook(context.Background(), "sendgrid", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

// Duplicate delivery of the same provider_event_id applies exactly once.
func TestIngestWebhook_Idempotent(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeOrphans{})
	store.addEnrollment(domain.ChannelEmail, "msg_1")

	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)
	h := signedHeaders("lemlist", body)

	out, err := p.IngestWebhook(context.Background(), "lemlist", body, h)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)

	out, err = p.IngestWebhook(context.Background(), "lemlist", body, h)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	assert.Len(t, store.applied, 1)
	assert.Equal(t, int64(1), p.Stats()["events_duplicate"])
}

func TestIngestWebhook_OrphanQueued(t *testing.T) {
	store := newFakeStore()
	orphans := &fakeOrphans{}
	p := newTestPipeline(store, orphans)

	body := []byte(`{"_id":"evt_orp","type":"emailsDelivered","messageId":"msg_X"}`)

	out, err := p.IngestWebhook(context.Background(), "lemlist", body, signedHeaders("lemlist", body))
	require.NoError(t, err)
	assert.True(t, out.Orphaned)

	assert.Empty(t, store.applied)
	require.Len(t, orphans.entries, 1)
	assert.Equal(t, "msg_X", orphans.entries[0].ProviderMessageID)
	assert.Equal(t, int64(1), p.Stats()["events_orphaned"])
}

func TestIngestWebhook_StoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	store.applyErr = errors.New("deadlock detected")
	p := newTestPipeline(store, &fakeOrphans{})
	store.addEnrollment(domain.ChannelEmail, "msg_1")

	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)

	_, err := p.IngestWebhook(context.Background(), "lemlist", body, signedHeaders("lemlist", body))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
	assert.NotErrorIs(t, err, ErrMalformedPayload)
}

func TestIngestWebhook_ConcurrentDistinctEvents(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeOrphans{})
	store.addEnrollment(domain.ChannelEmail, "msg_1")

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := []byte(`{"_id":"evt_` + uuid.NewString() + `","type":"emailsDelivered","messageId":"msg_1"}`)
			_, err := p.IngestWebhook(context.Background(), "lemlist", body, signedHeaders("lemlist", body))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, store.applied, n)
	assert.Equal(t, int64(n), p.Stats()["events_received"])
}
