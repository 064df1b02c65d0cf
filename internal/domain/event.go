package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates normalized telemetry event types. Provider-specific
// names are mapped to these at ingestion.
type EventType string

const (
	EventSent           EventType = "sent"
	EventDelivered      EventType = "delivered"
	EventOpened         EventType = "opened"
	EventClicked        EventType = "clicked"
	EventReplied        EventType = "replied"
	EventBounced        EventType = "bounced"
	EventUnsubscribed   EventType = "unsubscribed"
	EventErrored        EventType = "errored"
	EventVideoGenerated EventType = "video_generated"
	EventVideoFailed    EventType = "video_failed"
)

// CounterColumn returns the campaign_instances counter column the event type
// increments, or "" if the type does not advance a counter.
func (t EventType) CounterColumn() string {
	switch t {
	case EventSent:
		return "total_sent"
	case EventDelivered:
		return "total_delivered"
	case EventOpened:
		return "total_opened"
	case EventClicked:
		return "total_clicked"
	case EventReplied:
		return "total_replied"
	case EventBounced:
		return "total_bounced"
	case EventUnsubscribed:
		return "total_unsubscribed"
	case EventErrored, EventVideoFailed:
		return "total_errored"
	default:
		return ""
	}
}

// EnrollmentTransition returns the enrollment status the event type forces,
// or "" if the enrollment is untouched.
func (t EventType) EnrollmentTransition() EnrollmentStatus {
	switch t {
	case EventBounced:
		return EnrollmentBounced
	case EventUnsubscribed:
		return EnrollmentUnsubscribed
	case EventReplied:
		return EnrollmentCompleted
	default:
		return ""
	}
}

// CampaignEvent is one normalized telemetry event. For any event carrying a
// provider event id, at most one row exists system-wide; that id is the
// dedup key.
type CampaignEvent struct {
	ID           uuid.UUID `json:"id" db:"id"`
	EnrollmentID uuid.UUID `json:"enrollment_id" db:"enrollment_id"`
	InstanceID   uuid.UUID `json:"instance_id" db:"instance_id"`
	EventType    EventType `json:"event_type" db:"event_type"`
	Channel      Channel   `json:"channel" db:"channel"`
	Provider     string    `json:"provider" db:"provider"`

	// ProviderEventID is the provider-issued unique token for this event.
	// Nil when the provider does not supply one.
	ProviderEventID *string `json:"provider_event_id" db:"provider_event_id"`

	// ProviderMessageID correlates the event back to the enrollment whose
	// outbound dispatch produced it.
	ProviderMessageID string `json:"provider_message_id" db:"provider_message_id"`

	StepNumber int             `json:"step_number" db:"step_number"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeadLetterStatus enumerates the replay lifecycle of a dead-lettered event.
type DeadLetterStatus string

const (
	DeadLetterFailed    DeadLetterStatus = "failed"
	DeadLetterReplaying DeadLetterStatus = "replaying"
	DeadLetterReplayed  DeadLetterStatus = "replayed"
)

// DeadLetterEvent is a webhook event rejected after all retries, kept for
// admin replay.
type DeadLetterEvent struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	Provider      string           `json:"provider" db:"provider"`
	RawPayload    json.RawMessage  `json:"raw_payload" db:"raw_payload"`
	Signature     string           `json:"signature" db:"signature"`
	FailureReason string           `json:"failure_reason" db:"failure_reason"`
	Status        DeadLetterStatus `json:"status" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	ReplayedAt    *time.Time       `json:"replayed_at" db:"replayed_at"`
}
