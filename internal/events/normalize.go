package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// Normalize converts a raw provider webhook payload into a CampaignEvent.
// The returned event has no enrollment attached yet; the pipeline resolves
// that separately so a missing enrollment can be orphan-queued instead of
// failing.
func Normalize(provider string, rawBody []byte) (*domain.CampaignEvent, error) {
	switch provider {
	case "lemlist":
		return normalizeLemlist(rawBody)
	case "postmark":
		return normalizePostmark(rawBody)
	case "phantombuster":
		return normalizePhantomBuster(rawBody)
	case "heygen":
		return normalizeHeyGen(rawBody)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// lemlistEventTypes maps Lemlist activity types to normalized event types.
var lemlistEventTypes = map[string]domain.EventType{
	"emailsSent":         domain.EventSent,
	"emailsDelivered":    domain.EventDelivered,
	"emailsOpened":       domain.EventOpened,
	"emailsClicked":      domain.EventClicked,
	"emailsReplied":      domain.EventReplied,
	"emailsBounced":      domain.EventBounced,
	"emailsUnsubscribed": domain.EventUnsubscribed,
	"emailsFailed":       domain.EventErrored,
	"emailsSendFailed":   domain.EventErrored,
}

func normalizeLemlist(rawBody []byte) (*domain.CampaignEvent, error) {
	var p struct {
		ID           string `json:"_id"`
		Type         string `json:"type"`
		MessageID    string `json:"messageId"`
		LeadEmail    string `json:"leadEmail"`
		SequenceStep int    `json:"sequenceStep"`
		CreatedAt    string `json:"createdAt"`
	}
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("%w: lemlist: %v", ErrMalformedPayload, err)
	}

	eventType, ok := lemlistEventTypes[p.Type]
	if !ok {
		return nil, fmt.Errorf("%w: lemlist: unknown activity type %q", ErrMalformedPayload, p.Type)
	}
	if p.MessageID == "" {
		return nil, fmt.Errorf("%w: lemlist: missing messageId", ErrMalformedPayload)
	}

	ev := &domain.CampaignEvent{
		EventType:         eventType,
		Channel:           domain.ChannelEmail,
		Provider:          "lemlist",
		ProviderMessageID: p.MessageID,
		StepNumber:        p.SequenceStep,
		Timestamp:         parseTime(p.CreatedAt),
		Metadata:          json.RawMessage(rawBody),
	}
	if p.ID != "" {
		ev.ProviderEventID = &p.ID
	}
	return ev, nil
}

// postmarkEventTypes maps Postmark record types to normalized event types.
var postmarkEventTypes = map[string]domain.EventType{
	"Delivery":           domain.EventDelivered,
	"Open":               domain.EventOpened,
	"Click":              domain.EventClicked,
	"Bounce":             domain.EventBounced,
	"SpamComplaint":      domain.EventUnsubscribed,
	"SubscriptionChange": domain.EventUnsubscribed,
}

func normalizePostmark(rawBody []byte) (*domain.CampaignEvent, error) {
	var p struct {
		RecordType  string `json:"RecordType"`
		MessageID   string `json:"MessageID"`
		ID          int64  `json:"ID"`
		DeliveredAt string `json:"DeliveredAt"`
		BouncedAt   string `json:"BouncedAt"`
		ReceivedAt  string `json:"ReceivedAt"`
	}
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("%w: postmark: %v", ErrMalformedPayload, err)
	}

	eventType, ok := postmarkEventTypes[p.RecordType]
	if !ok {
		return nil, fmt.Errorf("%w: postmark: unknown record type %q", ErrMalformedPayload, p.RecordType)
	}
	if p.MessageID == "" {
		return nil, fmt.Errorf("%w: postmark: missing MessageID", ErrMalformedPayload)
	}

	ts := p.DeliveredAt
	if ts == "" {
		ts = p.BouncedAt
	}
	if ts == "" {
		ts = p.ReceivedAt
	}

	ev := &domain.CampaignEvent{
		EventType:         eventType,
		Channel:           domain.ChannelEmail,
		Provider:          "postmark",
		ProviderMessageID: p.MessageID,
		Timestamp:         parseTime(ts),
		Metadata:          json.RawMessage(rawBody),
	}
	// Postmark assigns numeric ids to bounce-class records only; open/click
	// records have no provider-unique id and dedup falls back to
	// (enrollment, type, timestamp).
	if p.ID != 0 {
		id := fmt.Sprintf("pm_%d", p.ID)
		ev.ProviderEventID = &id
	}
	return ev, nil
}

// phantombusterEventTypes maps PhantomBuster agent result events to
// normalized event types on the linkedin channel.
var phantombusterEventTypes = map[string]domain.EventType{
	"connection_request_sent": domain.EventSent,
	"connection_accepted":     domain.EventDelivered,
	"message_sent":            domain.EventSent,
	"message_seen":            domain.EventOpened,
	"message_replied":         domain.EventReplied,
	"agent_error":             domain.EventErrored,
}

func normalizePhantomBuster(rawBody []byte) (*domain.CampaignEvent, error) {
	var p struct {
		EventType   string `json:"eventType"`
		ContainerID string `json:"containerId"`
		MessageID   string `json:"messageId"`
		ProfileURL  string `json:"profileUrl"`
		Timestamp   string `json:"timestamp"`
	}
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("%w: phantombuster: %v", ErrMalformedPayload, err)
	}

	eventType, ok := phantombusterEventTypes[p.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: phantombuster: unknown event type %q", ErrMalformedPayload, p.EventType)
	}
	if p.MessageID == "" {
		return nil, fmt.Errorf("%w: phantombuster: missing messageId", ErrMalformedPayload)
	}

	ev := &domain.CampaignEvent{
		EventType:         eventType,
		Channel:           domain.ChannelLinkedIn,
		Provider:          "phantombuster",
		ProviderMessageID: p.MessageID,
		Timestamp:         parseTime(p.Timestamp),
		Metadata:          json.RawMessage(rawBody),
	}
	if p.ContainerID != "" {
		id := p.ContainerID + ":" + p.EventType
		ev.ProviderEventID = &id
	}
	return ev, nil
}

func normalizeHeyGen(rawBody []byte) (*domain.CampaignEvent, error) {
	var p struct {
		EventType string `json:"event_type"`
		EventData struct {
			VideoID    string `json:"video_id"`
			CallbackID string `json:"callback_id"`
			URL        string `json:"url"`
			Msg        string `json:"msg"`
		} `json:"event_data"`
	}
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return nil, fmt.Errorf("%w: heygen: %v", ErrMalformedPayload, err)
	}

	var eventType domain.EventType
	switch p.EventType {
	case "avatar_video.success":
		eventType = domain.EventVideoGenerated
	case "avatar_video.fail":
		eventType = domain.EventVideoFailed
	default:
		return nil, fmt.Errorf("%w: heygen: unknown event type %q", ErrMalformedPayload, p.EventType)
	}
	if p.EventData.CallbackID == "" {
		return nil, fmt.Errorf("%w: heygen: missing callback_id", ErrMalformedPayload)
	}

	ev := &domain.CampaignEvent{
		EventType:         eventType,
		Channel:           domain.ChannelVideo,
		Provider:          "heygen",
		ProviderMessageID: p.EventData.CallbackID,
		Timestamp:         time.Now().UTC(),
		Metadata:          json.RawMessage(rawBody),
	}
	if p.EventData.VideoID != "" {
		id := p.EventData.VideoID + ":" + p.EventType
		ev.ProviderEventID = &id
	}
	return ev, nil
}

// parseTime handles the timestamp formats providers emit; zero or
// unparseable values fall back to the ingestion time so events always order.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.9999999Z0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
