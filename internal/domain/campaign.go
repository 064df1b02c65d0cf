package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Channel identifies the outreach channel a message travels on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
	ChannelVideo    Channel = "video"
)

// Valid reports whether the channel is one of the known channels.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelLinkedIn || c == ChannelVideo
}

// CampaignType enumerates the kinds of campaign templates.
type CampaignType string

const (
	CampaignTypeEmail        CampaignType = "email"
	CampaignTypeLinkedIn     CampaignType = "linkedin"
	CampaignTypeMultichannel CampaignType = "multichannel"
)

// PathType distinguishes fixed step sequences from dynamically branching ones.
type PathType string

const (
	PathStructured PathType = "structured"
	PathDynamic    PathType = "dynamic"
)

// InstanceStatus enumerates the lifecycle states of a campaign instance.
//
// Allowed transitions: draft→active, active↔paused, active→completed,
// and completed→archived. Archiving is the only terminal transition;
// deleting an instance with active enrollments is forbidden.
type InstanceStatus string

const (
	InstanceDraft     InstanceStatus = "draft"
	InstanceActive    InstanceStatus = "active"
	InstancePaused    InstanceStatus = "paused"
	InstanceCompleted InstanceStatus = "completed"
	InstanceArchived  InstanceStatus = "archived"
)

// CampaignTemplate is a reusable definition of a multi-step sequence.
// Once referenced by an active instance it is immutable; edits create a
// new version instead.
type CampaignTemplate struct {
	ID       uuid.UUID       `json:"id" db:"id"`
	OwnerID  string          `json:"owner_id" db:"owner_id"`
	Name     string          `json:"name" db:"name"`
	Type     CampaignType    `json:"type" db:"type"`
	PathType PathType        `json:"path_type" db:"path_type"`
	IsActive bool            `json:"is_active" db:"is_active"`
	Steps    json.RawMessage `json:"steps" db:"steps"`
	Settings json.RawMessage `json:"settings" db:"settings"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CampaignInstance is a running materialization of a template. It owns the
// aggregate counters; every counter advances only via atomic SQL increment
// inside the event pipeline's transaction and is monotonically non-decreasing.
type CampaignInstance struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TemplateID uuid.UUID       `json:"template_id" db:"template_id"`
	OwnerID    string          `json:"owner_id" db:"owner_id"`
	Status     InstanceStatus  `json:"status" db:"status"`
	Provider   string          `json:"provider" db:"provider"`
	Settings   json.RawMessage `json:"settings" db:"settings"`

	TotalSent         int64 `json:"total_sent" db:"total_sent"`
	TotalDelivered    int64 `json:"total_delivered" db:"total_delivered"`
	TotalOpened       int64 `json:"total_opened" db:"total_opened"`
	TotalClicked      int64 `json:"total_clicked" db:"total_clicked"`
	TotalReplied      int64 `json:"total_replied" db:"total_replied"`
	TotalBounced      int64 `json:"total_bounced" db:"total_bounced"`
	TotalUnsubscribed int64 `json:"total_unsubscribed" db:"total_unsubscribed"`
	TotalErrored      int64 `json:"total_errored" db:"total_errored"`

	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	PausedAt    *time.Time `json:"paused_at" db:"paused_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// DeliveryRate is total_delivered / total_sent.
func (i *CampaignInstance) DeliveryRate() float64 {
	if i.TotalSent == 0 {
		return 0
	}
	return float64(i.TotalDelivered) / float64(i.TotalSent)
}

// OpenRate is total_opened / total_delivered. The denominator is delivered,
// not sent.
func (i *CampaignInstance) OpenRate() float64 {
	if i.TotalDelivered == 0 {
		return 0
	}
	return float64(i.TotalOpened) / float64(i.TotalDelivered)
}

// ClickThroughRate is total_clicked / total_opened.
func (i *CampaignInstance) ClickThroughRate() float64 {
	if i.TotalOpened == 0 {
		return 0
	}
	return float64(i.TotalClicked) / float64(i.TotalOpened)
}

// EnrollmentStatus enumerates the states of a contact's journey through an
// instance.
type EnrollmentStatus string

const (
	EnrollmentActive       EnrollmentStatus = "active"
	EnrollmentPaused       EnrollmentStatus = "paused"
	EnrollmentCompleted    EnrollmentStatus = "completed"
	EnrollmentBounced      EnrollmentStatus = "bounced"
	EnrollmentUnsubscribed EnrollmentStatus = "unsubscribed"
)

// CampaignEnrollment is one contact's journey through one campaign instance.
// At most one active enrollment exists per (instance, contact), and
// ProviderMessageID is unique per channel once set.
type CampaignEnrollment struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	InstanceID        uuid.UUID        `json:"instance_id" db:"instance_id"`
	ContactEmail      string           `json:"contact_email" db:"contact_email"`
	ContactMeta       json.RawMessage  `json:"contact_meta" db:"contact_meta"`
	Channel           Channel          `json:"channel" db:"channel"`
	ProviderMessageID *string          `json:"provider_message_id" db:"provider_message_id"`
	CurrentStep       int              `json:"current_step" db:"current_step"`
	Status            EnrollmentStatus `json:"status" db:"status"`
	NextActionAt      *time.Time       `json:"next_action_at" db:"next_action_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
