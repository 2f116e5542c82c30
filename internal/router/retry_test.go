package router

import (
	"context"
	"errors"
	"testing"
	"time"
)

// countingProvisioner fails CreateLogin with a fixed error until failures
// runs out
type countingProvisioner struct {
	failures int
	failWith error
	calls    int
}

func (p *countingProvisioner) CreateLogin(ctx context.Context, target Target, login Login) error {
	p.calls++
	if p.failures > 0 {
		p.failures--
		return p.failWith
	}
	return nil
}

func (p *countingProvisioner) RemoveLogin(ctx context.Context, target Target, username string) error {
	p.calls++
	if p.failures > 0 {
		p.failures--
		return p.failWith
	}
	return nil
}

func (p *countingProvisioner) ListActiveSessions(ctx context.Context, target Target) ([]Session, error) {
	return nil, nil
}

func (p *countingProvisioner) DisconnectSession(ctx context.Context, target Target, username string) error {
	return nil
}

func (p *countingProvisioner) TestConnectivity(ctx context.Context, target Target) (*Health, error) {
	return &Health{Reachable: true}, nil
}

func TestRetryingProvisioner(t *testing.T) {
	ctx := context.Background()
	target := Target{Address: "192.168.88.1"}

	t.Run("Given transient connection failures When retried Then the call succeeds", func(t *testing.T) {
		inner := &countingProvisioner{failures: 2, failWith: ErrConnection}
		p := WithRetry(inner, 3, time.Millisecond)

		if err := p.CreateLogin(ctx, target, Login{Username: "ABCD23456"}); err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if inner.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", inner.calls)
		}
	})

	t.Run("Given a persistent outage When attempts are exhausted Then the error surfaces", func(t *testing.T) {
		inner := &countingProvisioner{failures: 10, failWith: ErrConnection}
		p := WithRetry(inner, 3, time.Millisecond)

		err := p.CreateLogin(ctx, target, Login{Username: "ABCD23456"})
		if !errors.Is(err, ErrConnection) {
			t.Fatalf("expected ErrConnection, got %v", err)
		}
		if inner.calls != 3 {
			t.Errorf("expected exactly 3 attempts, got %d", inner.calls)
		}
	})

	t.Run("Given a logical error When called Then there is no retry", func(t *testing.T) {
		inner := &countingProvisioner{failures: 10, failWith: ErrDuplicateUser}
		p := WithRetry(inner, 3, time.Millisecond)

		err := p.CreateLogin(ctx, target, Login{Username: "ABCD23456"})
		if !errors.Is(err, ErrDuplicateUser) {
			t.Fatalf("expected ErrDuplicateUser, got %v", err)
		}
		if inner.calls != 1 {
			t.Errorf("logical errors must not be retried, got %d attempts", inner.calls)
		}
	})

	t.Run("Given a cancelled context When waiting to retry Then the wait aborts", func(t *testing.T) {
		inner := &countingProvisioner{failures: 10, failWith: ErrConnection}
		p := WithRetry(inner, 5, time.Minute)

		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := p.CreateLogin(cancelCtx, target, Login{Username: "ABCD23456"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Given zero attempts When configured Then one attempt still runs", func(t *testing.T) {
		inner := &countingProvisioner{}
		p := WithRetry(inner, 0, time.Millisecond)

		if err := p.RemoveLogin(ctx, target, "ABCD23456"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if inner.calls != 1 {
			t.Errorf("expected 1 attempt, got %d", inner.calls)
		}
	})
}
