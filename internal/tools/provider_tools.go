package tools

import (
	"context"
	"fmt"

	"github.com/ignite/outreach-orchestrator/internal/provider"
)

// RegisterProviderTools exposes the outbound provider operations as registry
// actions so workflow steps can dispatch them. Providers come lazily through
// the factory: a channel that is not configured fails at dispatch, not at
// registration.
func RegisterProviderTools(r *Registry, f *provider.Factory) {
	r.Register("send_email", sendEmail(f), Metadata{Type: Destructive})
	r.Register("batch_send_email", batchSendEmail(f), Metadata{Type: Destructive})
	r.Register("send_connection_request", sendConnectionRequest(f), Metadata{Type: Destructive})
	r.Register("send_linkedin_message", sendLinkedInMessage(f), Metadata{Type: Destructive})
	r.Register("generate_video", generateVideo(f), Metadata{Type: Destructive})
	r.Register("check_provider_health", checkProviderHealth(f), Metadata{Type: ReadOnly})
}

func sendEmail(f *provider.Factory) Func {
	return func(ctx context.Context, inputs map[string]interface{}) (interface{}, error) {
		p, err := f.CreateEmailProvider()
		if err != nil {
			return nil, err
		}
		msg := emailFromInputs(inputs)
		if msg.To == "" {
			return nil, fmt.Errorf("send_email: to is required")
		}
		return p.Send(ctx, msg)
	}
}

func batchSendEmail(f *provider.Factory) Func {
	return func(ctx context.Context, inputs map[string]interface{}) (interface{}, error) {
		p, err := f.CreateEmailProvider()
		if err != nil {
			return nil, err
		}
		contacts, _ := inputs["contacts"].([]interface{})
		if len(contacts) == 0 {
			return nil, fmt.Errorf("batch_send_email: contacts is required")
		}
		msgs := make([]*provider.EmailMessage, 0, len(contacts))
		for _, c := range contacts {
			fields, _ := c.(map[string]interface{})
			msg := emailFromInputs(fields)
			if msg.Subject == "" {
				msg.Subject = strInput(inputs, "subject")
			}
			if msg.From == "" {
				msg.From = strInput(inputs, "from")
			}
			if msg.To == "" {
				return nil, fmt.Errorf("batch_send_email: every contact needs a to address")
			}
			msgs = append(msgs, msg)
		}
		return p.BatchSend(ctx, msgs)
	}
}

func sendConnectionRequest(f *provider.Factory) Func {
	return func(ctx context.Context, inputs map[string]interface{}) (interface{}, error) {
		p, err := f.CreateLinkedInProvider()
		if err != nil {
			return nil, err
		}
		message := strInput(inputs, "message")
		if err := p.ValidateConnectionRequest(message); err != nil {
			return nil, err
		}
		return p.SendConnectionRequest(ctx, &provider.ConnectionRequest{
			ProfileURL: strInput(inputs, "profile_url"),
			Message:    message,
		})
	}
}

func sendLinkedInMessage(f *provider.Factory) Func {
	return func(ctx context.Context, inputs map[string]interface{}) (interface{}, error) {
		p, err := f.CreateLinkedInProvider()
		if err != nil {
			return nil, err
		}
		return p.SendMessage(ctx, &provider.LinkedInMessage{
			ProfileURL: strInput(inputs, "profile_url"),
			Message:    strInput(inputs, "message"),
		})
	}
}

func generateVideo(f *provider.Factory) Func {
	return func(ctx context.Context, inputs map[string]interface{}) (interface{}, error) {
		p, err := f.CreateVideoProvider()
		if err != nil {
			return nil, err
		}
		return p.GenerateVideo(ctx, &provider.VideoRequest{
			AvatarID:   strInput(inputs, "avatar_id"),
			Script:     strInput(inputs, "script"),
			CallbackID: strInput(inputs, "callback_id"),
		})
	}
}

// checkProviderHealth pings every configured channel. A channel that cannot
// be constructed or fails its health check reports the error instead of
// failing the whole dispatch.
func checkProviderHealth(f *provider.Factory) Func {
	type healthChecker interface {
		HealthCheck(ctx context.Context) error
	}
	check := func(ctx context.Context, p healthChecker, err error) string {
		if err == nil {
			err = p.HealthCheck(ctx)
		}
		if err != nil {
			return err.Error()
		}
		return "healthy"
	}
	return func(ctx context.Context, inputs map[string]interface{}) (interface{}, error) {
		out := map[string]interface{}{}
		email, err := f.CreateEmailProvider()
		out["email"] = check(ctx, email, err)
		linkedin, err := f.CreateLinkedInProvider()
		out["linkedin"] = check(ctx, linkedin, err)
		video, err := f.CreateVideoProvider()
		out["video"] = check(ctx, video, err)
		return out, nil
	}
}

func emailFromInputs(inputs map[string]interface{}) *provider.EmailMessage {
	return &provider.EmailMessage{
		To:       strInput(inputs, "to"),
		From:     strInput(inputs, "from"),
		Subject:  strInput(inputs, "subject"),
		HTMLBody: strInput(inputs, "html_body"),
		TextBody: strInput(inputs, "text_body"),
	}
}

func strInput(inputs map[string]interface{}, key string) string {
	s, _ := inputs[key].(string)
	return s
}
