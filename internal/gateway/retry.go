package gateway

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/user/loungeremote/pkg/lounge"
)

// RetryPolicy controls how failed commands and reconnects are retried with
// exponential backoff.
type RetryPolicy struct {
	// MaxAttempts of zero or less retries until the context is done.
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// Retryable overrides the default error classification when set.
	Retryable func(err error) bool
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 3 attempts, 1s initial delay, 2x multiplier, 30s max delay.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
	}
}

// ReconnectPolicy retries forever, starting at 5s and capping at 2m. Only
// cancellation and a token the server still rejects after a refresh stop it.
func ReconnectPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialDelay: 5 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     2 * time.Minute,
		Retryable:    reconnectable,
	}
}

func reconnectable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, lounge.ErrTokenExpired):
		return false
	}
	return true
}

// ShouldRetry returns true if the error is retryable and the attempt count
// has not exceeded MaxAttempts.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if p.MaxAttempts > 0 && attempt > p.MaxAttempts {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return p.isRetryable(err)
}

// isRetryable classifies lounge errors by kind and anything else by message.
// Unknown errors default to retryable.
func (p *RetryPolicy) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, lounge.ErrTransport),
		errors.Is(err, lounge.ErrSessionExpired),
		errors.Is(err, lounge.ErrConnectionClosed):
		return true
	case errors.Is(err, lounge.ErrTokenExpired),
		errors.Is(err, lounge.ErrInvalidResponse),
		errors.Is(err, lounge.ErrDecode),
		errors.Is(err, lounge.ErrNumericParse):
		return false
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return true
	}

	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") {
		return false
	}

	return true
}

// NextDelay returns the backoff delay for the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached, sleeping between attempts. It returns ctx.Err() if
// ctx is done while waiting.
func (p *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; p.MaxAttempts <= 0 || attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err, attempt) {
			return err
		}
		if p.MaxAttempts > 0 && attempt == p.MaxAttempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t := time.NewTimer(p.NextDelay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return lastErr
}
