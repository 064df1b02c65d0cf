package provider

import (
	"fmt"
	"time"
)

// ProviderError is the base of the provider error taxonomy. Every error
// serializes to JSON as {name, message, provider, timestamp, ...extras} so
// callers can classify failures mechanically.
type ProviderError struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Name, e.Provider, e.Message)
}

func baseError(name, provider, message string) ProviderError {
	return ProviderError{
		Name:      name,
		Message:   message,
		Provider:  provider,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderError builds an untyped provider error.
func NewProviderError(provider, message string) *ProviderError {
	e := baseError("ProviderError", provider, message)
	return &e
}

// ProviderConfigError signals missing or invalid provider configuration.
type ProviderConfigError struct {
	ProviderError
}

func NewConfigError(provider, message string) *ProviderConfigError {
	return &ProviderConfigError{baseError("ProviderConfigError", provider, message)}
}

// RateLimitError signals HTTP 429 or a provider-reported quota window.
type RateLimitError struct {
	ProviderError
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

func NewRateLimitError(provider, message string, limit int, resetAt time.Time) *RateLimitError {
	return &RateLimitError{
		ProviderError: baseError("RateLimitError", provider, message),
		Limit:         limit,
		ResetAt:       resetAt,
	}
}

// WebhookVerificationError signals a webhook signature that failed to verify.
type WebhookVerificationError struct {
	ProviderError
}

func NewWebhookVerificationError(provider, message string) *WebhookVerificationError {
	return &WebhookVerificationError{baseError("WebhookVerificationError", provider, message)}
}

// ProviderAPIError carries an unexpected HTTP response from the provider.
type ProviderAPIError struct {
	ProviderError
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

func NewAPIError(provider, message string, status int, body string) *ProviderAPIError {
	return &ProviderAPIError{
		ProviderError: baseError("ProviderApiError", provider, message),
		StatusCode:    status,
		Body:          body,
	}
}

// ProviderValidationError signals request content the provider would reject,
// caught before any network call.
type ProviderValidationError struct {
	ProviderError
}

func NewValidationError(provider, message string) *ProviderValidationError {
	return &ProviderValidationError{baseError("ProviderValidationError", provider, message)}
}

// QuotaExceededError signals a hard account quota, distinct from a rate
// window that resets on its own.
type QuotaExceededError struct {
	ProviderError
}

func NewQuotaExceededError(provider, message string) *QuotaExceededError {
	return &QuotaExceededError{baseError("QuotaExceededError", provider, message)}
}

// ProviderTimeoutError signals a request that exceeded its deadline.
type ProviderTimeoutError struct {
	ProviderError
}

func NewTimeoutError(provider, message string) *ProviderTimeoutError {
	return &ProviderTimeoutError{baseError("ProviderTimeoutError", provider, message)}
}

// UnavailableError is the fast-fail surfaced when a circuit breaker is open.
type UnavailableError struct {
	ProviderError
}

func NewUnavailableError(provider string) *UnavailableError {
	return &UnavailableError{baseError("ProviderUnavailableError", provider, "provider temporarily unavailable")}
}
