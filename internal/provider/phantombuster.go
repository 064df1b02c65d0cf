package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
)

// LinkedIn caps connection invitation notes at 300 characters.
const maxConnectionNoteChars = 300

// PhantomBuster drives LinkedIn outreach by launching phantom agents.
type PhantomBuster struct {
	cfg    config.ProviderConfig
	client *apiClient
}

// NewPhantomBuster builds a PhantomBuster LinkedIn provider from config.
func NewPhantomBuster(cfg config.ProviderConfig) *PhantomBuster {
	auth := func(req *http.Request) {
		req.Header.Set("X-Phantombuster-Key-1", cfg.APIKey)
	}
	return &PhantomBuster{
		cfg:    cfg,
		client: newAPIClient("phantombuster", cfg.BaseURL, cfg.Timeout(), auth),
	}
}

// ValidateConfig checks the provider can plausibly authenticate.
func (p *PhantomBuster) ValidateConfig() error {
	if p.cfg.APIKey == "" {
		return NewConfigError("phantombuster", "PHANTOMBUSTER_API_KEY is not set")
	}
	if p.cfg.BaseURL == "" {
		return NewConfigError("phantombuster", "base URL is not set")
	}
	return nil
}

// ValidateConnectionRequest enforces LinkedIn's invitation constraints
// before any agent launch: non-empty after trimming, at most 300 characters.
func (p *PhantomBuster) ValidateConnectionRequest(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return NewValidationError("phantombuster", "connection request message is empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > maxConnectionNoteChars {
		return NewValidationError("phantombuster",
			fmt.Sprintf("connection request message is %d characters, limit is %d", n, maxConnectionNoteChars))
	}
	return nil
}

type phantomLaunchResponse struct {
	ContainerID string `json:"containerId"`
}

// SendConnectionRequest launches the connection-request phantom for one
// profile. The container id doubles as the provider message id webhook
// events correlate on.
func (p *PhantomBuster) SendConnectionRequest(ctx context.Context, req *ConnectionRequest) (*SendResult, error) {
	if err := p.ValidateConnectionRequest(req.Message); err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"id": "linkedin-network-booster",
		"argument": map[string]string{
			"profileUrl": req.ProfileURL,
			"message":    strings.TrimSpace(req.Message),
		},
	}
	var resp phantomLaunchResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/agents/launch", body, &resp); err != nil {
		return nil, err
	}
	return &SendResult{ProviderMessageID: resp.ContainerID, AcceptedAt: time.Now().UTC()}, nil
}

// SendMessage launches the messaging phantom for an accepted connection.
func (p *PhantomBuster) SendMessage(ctx context.Context, msg *LinkedInMessage) (*SendResult, error) {
	if strings.TrimSpace(msg.Message) == "" {
		return nil, NewValidationError("phantombuster", "message is empty")
	}
	body := map[string]interface{}{
		"id": "linkedin-message-sender",
		"argument": map[string]string{
			"profileUrl": msg.ProfileURL,
			"message":    msg.Message,
		},
	}
	var resp phantomLaunchResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/agents/launch", body, &resp); err != nil {
		return nil, err
	}
	return &SendResult{ProviderMessageID: resp.ContainerID, AcceptedAt: time.Now().UTC()}, nil
}

// GetCapabilities reports PhantomBuster's envelope. Batch limit stays low;
// LinkedIn accounts get restricted well before the API does.
func (p *PhantomBuster) GetCapabilities() Capabilities {
	return Capabilities{
		Provider:         "phantombuster",
		Channels:         []domain.Channel{domain.ChannelLinkedIn},
		BatchLimit:       25,
		SupportsWebhooks: true,
		SupportsLinkedIn: true,
	}
}

// HealthCheck verifies connectivity and credentials with a cheap read.
func (p *PhantomBuster) HealthCheck(ctx context.Context) error {
	return p.client.doJSON(ctx, http.MethodGet, "/user", nil, nil)
}

// GetRateLimitStatus reports the daily LinkedIn action budget.
func (p *PhantomBuster) GetRateLimitStatus(ctx context.Context) (*RateLimitStatus, error) {
	return &RateLimitStatus{Limit: 100, Remaining: 100, ResetAt: time.Now().Add(24 * time.Hour)}, nil
}

// VerifyWebhookSignature checks the HMAC over the raw webhook body.
func (p *PhantomBuster) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if err := events.VerifySignature(rawBody, signature, p.cfg.WebhookSecret); err != nil {
		return NewWebhookVerificationError("phantombuster", err.Error())
	}
	return nil
}
