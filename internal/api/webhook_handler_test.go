package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
	"github.com/ignite/outreach-orchestrator/internal/tools"
)

const testSecret = "whsec_api"

type stubStore struct {
	mu          sync.Mutex
	enrollments map[string]*domain.CampaignEnrollment
	seen        map[string]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		enrollments: make(map[string]*domain.CampaignEnrollment),
		seen:        make(map[string]bool),
	}
}

func (s *stubStore) addEnrollment(channel domain.Channel, msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[string(channel)+"|"+msgID] = &domain.CampaignEnrollment{
		ID: uuid.New(), InstanceID: uuid.New(), Channel: channel, CurrentStep: 1,
	}
}

func (s *stubStore) FindEnrollmentByMessageID(ctx context.Context, channel domain.Channel, msgID string) (*domain.CampaignEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[string(channel)+"|"+msgID]
	if !ok {
		return nil, events.ErrEnrollmentNotFound
	}
	return e, nil
}

func (s *stubStore) ApplyEvent(ctx context.Context, ev *domain.CampaignEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ProviderEventID != nil {
		if s.seen[*ev.ProviderEventID] {
			return false, nil
		}
		s.seen[*ev.ProviderEventID] = true
	}
	return true, nil
}

type stubOrphans struct {
	mu      sync.Mutex
	entries int
}

func (q *stubOrphans) Enqueue(ctx context.Context, ev *domain.CampaignEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries++
	return nil
}

func newTestServer(store *stubStore) (*Server, http.Handler) {
	cfg := &config.Config{}
	pipeline := events.NewPipeline(store, &stubOrphans{}, map[string]string{"lemlist": testSecret})
	srv := NewServer(cfg, pipeline, nil, nil, nil, tools.NewRegistry(), nil, nil, nil)
	return srv, srv.Router()
}

func postWebhook(t *testing.T, h http.Handler, provider string, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	if sign {
		req.Header.Set(events.SignatureHeader(provider), "sha256="+events.Sign(body, testSecret))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_Processed(t *testing.T) {
	store := newStubStore()
	store.addEnrollment(domain.ChannelEmail, "msg_1")
	_, h := newTestServer(store)

	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)
	rec := postWebhook(t, h, "lemlist", body, true)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"processed"`)
}

func TestWebhook_OrphanQueued(t *testing.T) {
	_, h := newTestServer(newStubStore())

	body := []byte(`{"_id":"evt_1","type":"emailsDelivered","messageId":"msg_unknown"}`)
	rec := postWebhook(t, h, "lemlist", body, true)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queued"`)
}

func TestWebhook_Duplicate(t *testing.T) {
	store := newStubStore()
	store.addEnrollment(domain.ChannelEmail, "msg_1")
	_, h := newTestServer(store)

	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)
	postWebhook(t, h, "lemlist", body, true)
	rec := postWebhook(t, h, "lemlist", body, true)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duplicate"`)
}

func TestWebhook_BadSignature(t *testing.T) {
	store := newStubStore()
	store.addEnrollment(domain.ChannelEmail, "msg_1")
	_, h := newTestServer(store)

	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)
	rec := postWebhook(t, h, "lemlist", body, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Tampered body fails even with a once-valid signature.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/lemlist", strings.NewReader(`{"tampered":true}`))
	req.Header.Set(events.SignatureHeader("lemlist"), "sha256="+events.Sign(body, testSecret))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_UnknownProvider(t *testing.T) {
	_, h := newTestServer(newStubStore())
	rec := postWebhook(t, h, "sendgrid", []byte(`{}`), false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	_, h := newTestServer(newStubStore())
	rec := postWebhook(t, h, "lemlist", []byte(`not json`), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_NoDependenciesConfigured(t *testing.T) {
	_, h := newTestServer(newStubStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAdmin_ApprovalsRoundTrip(t *testing.T) {
	store := newStubStore()
	srv, h := newTestServer(store)

	// Park a large destructive dispatch.
	srv.registry.Register("sync_contacts", func(ctx context.Context, in map[string]interface{}) (interface{}, error) {
		return "ok", nil
	}, tools.Metadata{Type: tools.Destructive})

	contacts := make([]interface{}, 60)
	_, err := srv.registry.Execute(context.Background(), "sync_contacts", map[string]interface{}{"contacts": contacts})
	require.ErrorIs(t, err, tools.ErrApprovalPending)

	req := httptest.NewRequest(http.MethodGet, "/admin/approvals", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Pending []struct {
			ID string `json:"id"`
		} `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Pending, 1)

	req = httptest.NewRequest(http.MethodPost, "/admin/approvals/"+body.Pending[0].ID+"/approve", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown approval id is a 404.
	req = httptest.NewRequest(http.MethodPost, "/admin/approvals/nope_123/approve", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_Stats(t *testing.T) {
	store := newStubStore()
	store.addEnrollment(domain.ChannelEmail, "msg_1")
	_, h := newTestServer(store)

	body := []byte(`{"_id":"evt_1","type":"emailsOpened","messageId":"msg_1"}`)
	postWebhook(t, h, "lemlist", body, true)

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(1), out["pipeline"]["events_received"])
}
