package lounge

import (
	"context"
	"errors"
	"fmt"
)

// RefreshToken fetches a new lounge token, stores it and notifies the
// registered TokenRefreshListener. Concurrent calls share one request.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	v, err, _ := c.refreshes.Do("token", func() (any, error) {
		ctx, span := c.startSpan(ctx, "lounge.refresh_token")
		screen, err := c.api.tokenBatch(ctx, c.screenID)
		c.metrics.tokenRefresh(err)
		endSpan(span, err)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.token = screen.LoungeToken
		c.mu.Unlock()
		c.logger.Info("lounge token refreshed")

		if c.opts.listener != nil {
			c.opts.listener.OnTokenRefreshed(c.screenID, screen.LoungeToken)
		}
		return screen.LoungeToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// WithRefresh runs op, and when it fails with ErrTokenExpired refreshes the
// token and runs op exactly once more.
func (c *Client) WithRefresh(ctx context.Context, op func(context.Context) error) error {
	_, err := withRefresh(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func withRefresh[T any](ctx context.Context, c *Client, op func(context.Context) (T, error)) (T, error) {
	v, err := op(ctx)
	if !errors.Is(err, ErrTokenExpired) {
		return v, err
	}

	c.logger.Info("lounge token expired, refreshing", "error", err)
	if _, rerr := c.RefreshToken(ctx); rerr != nil {
		var zero T
		return zero, fmt.Errorf("refresh token: %w", rerr)
	}
	return op(ctx)
}
