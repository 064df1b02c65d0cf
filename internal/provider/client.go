package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// apiClient is the shared HTTP plumbing under every concrete provider. It
// routes each request through the provider's Transport and maps response
// statuses onto the error taxonomy.
type apiClient struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	transport  *Transport
	auth       func(req *http.Request)
}

func newAPIClient(provider, baseURL string, timeout time.Duration, auth func(*http.Request)) *apiClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &apiClient{
		provider:   provider,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		transport:  NewTransport(provider),
		auth:       auth,
	}
}

// doJSON issues one API call with retry and circuit breaking. body and out
// may be nil.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", c.provider, err)
		}
	}

	return c.transport.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build %s request: %w", c.provider, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.auth != nil {
			c.auth(req)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return c.classifyTransportError(err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode >= 400 {
			return c.classifyStatus(resp, respBody)
		}
		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode %s response: %w", c.provider, err)
			}
		}
		return nil
	})
}

func (c *apiClient) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(c.provider, "request deadline exceeded")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(c.provider, netErr.Error())
	}
	// Other transport errors stay as-is; IsRetryable treats net.Error as
	// transient.
	return fmt.Errorf("%s request: %w", c.provider, err)
}

func (c *apiClient) classifyStatus(resp *http.Response, body []byte) error {
	msg := fmt.Sprintf("%s returned %d", c.provider, resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewConfigError(c.provider, "authentication rejected, check API credentials")
	case resp.StatusCode == http.StatusRequestTimeout:
		return NewAPIError(c.provider, msg, resp.StatusCode, string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
		resetAt := time.Now().Add(time.Minute)
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				resetAt = time.Now().Add(time.Duration(secs) * time.Second)
			}
		}
		return NewRateLimitError(c.provider, "rate limit exceeded", limit, resetAt)
	case resp.StatusCode == http.StatusPaymentRequired:
		return NewQuotaExceededError(c.provider, "account quota exhausted")
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return NewValidationError(c.provider, fmt.Sprintf("%s: %s", msg, truncate(body, 500)))
	default:
		return NewAPIError(c.provider, msg, resp.StatusCode, truncate(body, 2000))
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
