package provider

import (
	"context"
	"errors"
	"net"
	"time"
)

// retrySchedule is the delay before each retry. A call gets one initial
// attempt plus one retry per slot; a non-retryable error or success stops
// the loop early.
var retrySchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Retryer retries provider calls on transient failures. sleep is
// replaceable so tests can observe the schedule without waiting it out.
type Retryer struct {
	provider string
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a retryer for one provider.
func NewRetryer(provider string) *Retryer {
	return &Retryer{provider: provider, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn, retrying transient failures on the backoff schedule. The last
// error is returned once the schedule is exhausted.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !IsRetryable(err) {
		return err
	}

	for _, delay := range retrySchedule {
		if sErr := r.sleep(ctx, delay); sErr != nil {
			return sErr
		}
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}

// IsRetryable classifies an error as transient. Retryable: timeouts, rate
// limits, HTTP 408/429/5xx, and network errors. Validation, config, quota,
// and other 4xx failures are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var timeout *ProviderTimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var rate *RateLimitError
	if errors.As(err, &rate) {
		return true
	}
	var api *ProviderAPIError
	if errors.As(err, &api) {
		return api.StatusCode == 408 || api.StatusCode == 429 || api.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
