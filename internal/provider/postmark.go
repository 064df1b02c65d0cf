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

// Postmark is the fallback email provider. Auth is the server token header.
type Postmark struct {
	cfg    config.ProviderConfig
	client *apiClient
}

// NewPostmark builds a Postmark email provider from config.
func NewPostmark(cfg config.ProviderConfig) *Postmark {
	auth := func(req *http.Request) {
		req.Header.Set("X-Postmark-Server-Token", cfg.APIKey)
	}
	return &Postmark{
		cfg:    cfg,
		client: newAPIClient("postmark", cfg.BaseURL, cfg.Timeout(), auth),
	}
}

// ValidateConfig checks the provider can plausibly authenticate.
func (p *Postmark) ValidateConfig() error {
	if p.cfg.APIKey == "" {
		return NewConfigError("postmark", "POSTMARK_SERVER_TOKEN is not set")
	}
	if p.cfg.BaseURL == "" {
		return NewConfigError("postmark", "base URL is not set")
	}
	return nil
}

type postmarkSendRequest struct {
	From     string            `json:"From"`
	To       string            `json:"To"`
	Subject  string            `json:"Subject"`
	HTMLBody string            `json:"HtmlBody,omitempty"`
	TextBody string            `json:"TextBody,omitempty"`
	Metadata map[string]string `json:"Metadata,omitempty"`
}

type postmarkSendResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send dispatches one email.
func (p *Postmark) Send(ctx context.Context, msg *EmailMessage) (*SendResult, error) {
	req := postmarkSendRequest{
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
		Metadata: msg.Metadata,
	}
	var resp postmarkSendResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/email", req, &resp); err != nil {
		return nil, err
	}
	// Postmark reports some failures with 200 + ErrorCode.
	if resp.ErrorCode != 0 {
		return nil, NewAPIError("postmark", resp.Message, http.StatusOK, fmt.Sprintf("error code %d", resp.ErrorCode))
	}
	return &SendResult{ProviderMessageID: resp.MessageID, AcceptedAt: time.Now().UTC()}, nil
}

// BatchSend uses the /email/batch endpoint, up to 500 messages per call.
func (p *Postmark) BatchSend(ctx context.Context, msgs []*EmailMessage) ([]*SendResult, error) {
	if limit := p.GetCapabilities().BatchLimit; len(msgs) > limit {
		return nil, NewValidationError("postmark", fmt.Sprintf("batch of %d exceeds limit %d", len(msgs), limit))
	}

	reqs := make([]postmarkSendRequest, len(msgs))
	for i, m := range msgs {
		reqs[i] = postmarkSendRequest{
			From: m.From, To: m.To, Subject: m.Subject,
			HTMLBody: m.HTMLBody, TextBody: m.TextBody, Metadata: m.Metadata,
		}
	}

	var resps []postmarkSendResponse
	if err := p.client.doJSON(ctx, http.MethodPost, "/email/batch", reqs, &resps); err != nil {
		return nil, err
	}

	results := make([]*SendResult, 0, len(resps))
	for _, r := range resps {
		if r.ErrorCode != 0 {
			return results, NewAPIError("postmark", r.Message, http.StatusOK, fmt.Sprintf("error code %d", r.ErrorCode))
		}
		results = append(results, &SendResult{ProviderMessageID: r.MessageID, AcceptedAt: time.Now().UTC()})
	}
	return results, nil
}

// GetCapabilities reports Postmark's envelope.
func (p *Postmark) GetCapabilities() Capabilities {
	return Capabilities{
		Provider:         "postmark",
		Channels:         []domain.Channel{domain.ChannelEmail},
		BatchLimit:       500,
		SupportsWebhooks: true,
	}
}

// HealthCheck verifies connectivity and credentials with a cheap read.
func (p *Postmark) HealthCheck(ctx context.Context) error {
	return p.client.doJSON(ctx, http.MethodGet, "/server", nil, nil)
}

// GetRateLimitStatus reports Postmark's effective budget. Postmark does not
// rate-limit the send API itself; the breaker handles degradation.
func (p *Postmark) GetRateLimitStatus(ctx context.Context) (*RateLimitStatus, error) {
	return &RateLimitStatus{Limit: 500, Remaining: 500, ResetAt: time.Now().Add(time.Minute)}, nil
}

// VerifyWebhookSignature checks the HMAC over the raw webhook body.
func (p *Postmark) VerifyWebhookSignature(rawBody []byte, signature string) error {
	if err := events.VerifySignature(rawBody, signature, p.cfg.WebhookSecret); err != nil {
		return NewWebhookVerificationError("postmark", err.Error())
	}
	return nil
}
