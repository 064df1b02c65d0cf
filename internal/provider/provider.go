// Package provider gives capability-typed access to outreach providers and
// hides their HTTP, auth, retry, and circuit-breaking concerns. Callers pick
// an interface for the channel they need; the factory decides which concrete
// provider backs it.
package provider

import (
	"context"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/domain"
)

// Capabilities describes what a provider can do. Callers inspect this
// before attempting an operation rather than probing with live calls.
type Capabilities struct {
	Provider          string           `json:"provider"`
	Channels          []domain.Channel `json:"channels"`
	BatchLimit        int              `json:"batch_limit"`
	SupportsWebhooks  bool             `json:"supports_webhooks"`
	SupportsLinkedIn  bool             `json:"supports_linkedin"`
	MaxGenerationTime time.Duration    `json:"max_generation_time_ms"`
	PollingInterval   time.Duration    `json:"polling_interval_ms"`
}

// RateLimitStatus reports the provider's current rate budget.
type RateLimitStatus struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// EmailMessage is one outbound email dispatch.
type EmailMessage struct {
	To       string            `json:"to"`
	From     string            `json:"from"`
	Subject  string            `json:"subject"`
	HTMLBody string            `json:"html_body"`
	TextBody string            `json:"text_body"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SendResult carries the provider-issued id used later to correlate
// webhook events back to the enrollment.
type SendResult struct {
	ProviderMessageID string    `json:"provider_message_id"`
	AcceptedAt        time.Time `json:"accepted_at"`
}

// ConnectionRequest is a LinkedIn connection invitation.
type ConnectionRequest struct {
	ProfileURL string `json:"profile_url"`
	Message    string `json:"message"`
}

// LinkedInMessage is a direct message to an accepted connection.
type LinkedInMessage struct {
	ProfileURL string `json:"profile_url"`
	Message    string `json:"message"`
}

// VideoRequest describes a personalized video to generate.
type VideoRequest struct {
	AvatarID   string `json:"avatar_id"`
	Script     string `json:"script"`
	CallbackID string `json:"callback_id"`
}

// VideoJob is an accepted generation request, completed asynchronously via
// webhook or polling.
type VideoJob struct {
	VideoID    string `json:"video_id"`
	CallbackID string `json:"callback_id"`
}

// VideoStatus is the poll-side view of a generation job.
type VideoStatus struct {
	VideoID  string `json:"video_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// EmailProvider sends campaign email.
type EmailProvider interface {
	Send(ctx context.Context, msg *EmailMessage) (*SendResult, error)
	BatchSend(ctx context.Context, msgs []*EmailMessage) ([]*SendResult, error)
	ValidateConfig() error
	GetCapabilities() Capabilities
	GetRateLimitStatus(ctx context.Context) (*RateLimitStatus, error)
	HealthCheck(ctx context.Context) error
	VerifyWebhookSignature(rawBody []byte, signature string) error
}

// LinkedInProvider automates LinkedIn outreach.
type LinkedInProvider interface {
	SendConnectionRequest(ctx context.Context, req *ConnectionRequest) (*SendResult, error)
	SendMessage(ctx context.Context, msg *LinkedInMessage) (*SendResult, error)
	// ValidateConnectionRequest checks the invitation note against
	// LinkedIn's constraints before any network call.
	ValidateConnectionRequest(message string) error
	ValidateConfig() error
	GetCapabilities() Capabilities
	GetRateLimitStatus(ctx context.Context) (*RateLimitStatus, error)
	HealthCheck(ctx context.Context) error
	VerifyWebhookSignature(rawBody []byte, signature string) error
}

// VideoProvider generates personalized video.
type VideoProvider interface {
	GenerateVideo(ctx context.Context, req *VideoRequest) (*VideoJob, error)
	GetVideoStatus(ctx context.Context, videoID string) (*VideoStatus, error)
	// DownloadVideo fetches a finished video into the configured download
	// directory and returns the local path. It rejects non-HTTPS URLs,
	// hosts outside the allow list, unexpected extensions, and any
	// destination outside the download directory.
	DownloadVideo(ctx context.Context, videoURL, destName string) (string, error)
	ValidateConfig() error
	GetCapabilities() Capabilities
	HealthCheck(ctx context.Context) error
	VerifyWebhookSignature(rawBody []byte, signature string) error
}
