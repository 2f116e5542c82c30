package router

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryingProvisioner wraps a Provisioner and retries mutating operations
// with bounded exponential backoff when the router is unreachable. Logical
// errors (duplicate user, session not found) are surfaced immediately.
type RetryingProvisioner struct {
	inner    Provisioner
	attempts int
	backoff  time.Duration
}

// WithRetry decorates a provisioner with a retry policy
func WithRetry(inner Provisioner, attempts int, backoff time.Duration) *RetryingProvisioner {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryingProvisioner{
		inner:    inner,
		attempts: attempts,
		backoff:  backoff,
	}
}

func (p *RetryingProvisioner) retry(ctx context.Context, op string, target Target, fn func() error) error {
	var err error
	delay := p.backoff

	for attempt := 1; attempt <= p.attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrConnection) {
			return err
		}

		if attempt == p.attempts {
			break
		}

		log.Warn().
			Err(err).
			Str("op", op).
			Str("router", target.Address).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Router operation failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}

// CreateLogin retries CreateLogin on connection errors
func (p *RetryingProvisioner) CreateLogin(ctx context.Context, target Target, login Login) error {
	return p.retry(ctx, "create-login", target, func() error {
		return p.inner.CreateLogin(ctx, target, login)
	})
}

// RemoveLogin retries RemoveLogin on connection errors
func (p *RetryingProvisioner) RemoveLogin(ctx context.Context, target Target, username string) error {
	return p.retry(ctx, "remove-login", target, func() error {
		return p.inner.RemoveLogin(ctx, target, username)
	})
}

// DisconnectSession retries DisconnectSession on connection errors
func (p *RetryingProvisioner) DisconnectSession(ctx context.Context, target Target, username string) error {
	return p.retry(ctx, "disconnect", target, func() error {
		return p.inner.DisconnectSession(ctx, target, username)
	})
}

// ListActiveSessions is read-only and not retried
func (p *RetryingProvisioner) ListActiveSessions(ctx context.Context, target Target) ([]Session, error) {
	return p.inner.ListActiveSessions(ctx, target)
}

// TestConnectivity is diagnostic and not retried
func (p *RetryingProvisioner) TestConnectivity(ctx context.Context, target Target) (*Health, error) {
	return p.inner.TestConnectivity(ctx, target)
}
