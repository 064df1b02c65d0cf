package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/domain"
	"github.com/ignite/outreach-orchestrator/internal/events"
)

// Lemlist is the primary email provider. Auth is HTTP basic with the API
// key as password and an empty user.
type Lemlist struct {
	cfg    config.ProviderConfig
	client *apiClient
}

// NewLemlist builds a Lemlist email provider from config.
func NewLemlist(cfg config.ProviderConfig) *Lemlist {
	auth := func(req *http.Request) {
		req.SetBasicAuth("", cfg.APIKey)
	}
	return &Lemlist{
		cfg:    cfg,
		client: newAPIClient("lemlist", cfg.BaseURL, cfg.Timeout(), auth),
	}
}

// ValidateConfig checks the provider can plausibly authenticate.
func (l *Lemlist) ValidateConfig() error {
	if l.cfg.APIKey == "" {
		return NewConfigError("lemlist", "LEMLIST_API_KEY is not set")
	}
	if l.cfg.BaseURL == "" {
		return NewConfigError("lemlist", "base URL is not set")
	}
	return nil
}

type lemlistSendResponse struct {
	MessageID string `json:"messageId"`
}

// Send dispatches one email through the transactional endpoint.
func (l *Lemlist) Send(ctx context.Context, msg *EmailMessage) (*SendResult, error) {
	body := map[string]interface{}{
		"to":       msg.To,
		"from":     msg.From,
		"subject":  msg.Subject,
		"html":     msg.HTMLBody,
		"text":     msg.TextBody,
		"metadata": msg.Metadata,
	}
	var resp lemlistSendResponse
	if err := l.client.doJSON(ctx, http.MethodPost, "/emails/send", body, &resp); err != nil {
		return nil, err
	}
	return &SendResult{ProviderMessageID: resp.MessageID, AcceptedAt: time.Now().UTC()}, nil
}

// BatchSend dispatches sequentially; lemlist has no bulk endpoint. The first
// failure aborts and returns the results accepted so far alongside the error.
func (l *Lemlist) BatchSend(ctx context.Context, msgs []*EmailMessage) ([]*SendResult, error) {
	if limit := l.GetCapabilities().BatchLimit; len(msgs) > limit {
		return nil, NewValidationError("lemlist", fmt.Sprintf("batch of %d exceeds limit %d", len(msgs), limit))
	}
	results := make([]*SendResult, 0, len(msgs))
	for _, m := range msgs {
		res, err := l.Send(ctx, m)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// GetCapabilities reports lemlist's envelope.
func (l *Lemlist) GetCapabilities() Capabilities {
	return Capabilities{
		Provider:         "lemlist",
		Channels:         []domain.Channel{domain.ChannelEmail},
		BatchLimit:       100,
		SupportsWebhooks: true,
	}
}

type lemlistTeamResponse struct {
	ID string `json:"_id"`
}

// HealthCheck verifies connectivity and credentials with a cheap read.
func (l *Lemlist) HealthCheck(ctx context.Context) error {
	var resp lemlistTeamResponse
	return l.client.doJSON(ctx, http.MethodGet, "/team", nil, &resp)
}

// GetRateLimitStatus reads the documented 20 req/2s window. Lemlist does not
// expose remaining budget, so Remaining mirrors Limit.
func (l *Lemlist) GetRateLimitStatus(ctx context.Context) (*RateLimitStatus, error) {
	return &RateLimitStatus{Limit: 20, Remaining: 20, ResetAt: time.Now().Add(2 * time.Second)}, nil
}

// VerifyWebhookSignature checks the HMAC over the raw webhook body.
func (l *Lemlist) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if err := events.VerifySignature(rawBody, signature, l.cfg.WebhookSecret); err != nil {
		return NewWebhookVerificationError("lemlist", err.Error())
	}
	return nil
}
