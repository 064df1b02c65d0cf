package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleeper records requested delays instead of waiting.
func fakeSleeper(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryer_ExhaustsExactSchedule(t *testing.T) {
	var delays []time.Duration
	r := NewRetryer("lemlist")
	r.sleep = fakeSleeper(&delays)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return NewAPIError("lemlist", "server error", http.StatusBadGateway, "")
	})

	require.Error(t, err)
	assert.Equal(t, 6, calls)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, delays)
}

func TestRetryer_StopsOnSuccess(t *testing.T) {
	var delays []time.Duration
	r := NewRetryer("lemlist")
	r.sleep = fakeSleeper(&delays)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return NewAPIError("lemlist", "flaky", http.StatusServiceUnavailable, "")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, delays)
}

func TestRetryer_NonRetryableFailsImmediately(t *testing.T) {
	var delays []time.Duration
	r := NewRetryer("lemlist")
	r.sleep = fakeSleeper(&delays)

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return NewValidationError("lemlist", "bad recipient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestRetryer_ContextCancelDuringBackoff(t *testing.T) {
	r := NewRetryer("lemlist")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		return NewAPIError("lemlist", "down", http.StatusInternalServerError, "")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: connection refused" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", NewTimeoutError("x", "deadline"), true},
		{"rate limit", NewRateLimitError("x", "slow down", 20, time.Now()), true},
		{"api 408", NewAPIError("x", "", 408, ""), true},
		{"api 429", NewAPIError("x", "", 429, ""), true},
		{"api 500", NewAPIError("x", "", 500, ""), true},
		{"api 503", NewAPIError("x", "", 503, ""), true},
		{"api 400", NewAPIError("x", "", 400, ""), false},
		{"api 404", NewAPIError("x", "", 404, ""), false},
		{"validation", NewValidationError("x", "bad"), false},
		{"config", NewConfigError("x", "no key"), false},
		{"quota", NewQuotaExceededError("x", "done"), false},
		{"net error", &fakeNetError{}, true},
		{"wrapped net error", errors.Join(errors.New("send"), &fakeNetError{timeout: true}), true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

var _ net.Error = (*fakeNetError)(nil)
