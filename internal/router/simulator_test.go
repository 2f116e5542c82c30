package router

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulatedProvisioner(t *testing.T) {
	ctx := context.Background()
	target := Target{Address: "192.168.88.1", Port: 8728}
	login := Login{Username: "ABCD23456", Password: "ABCD23456", Profile: "plan-1hour", TimeLimit: time.Hour}

	t.Run("Given a login When created Then a session appears", func(t *testing.T) {
		p := NewSimulatedProvisioner()

		if err := p.CreateLogin(ctx, target, login); err != nil {
			t.Fatalf("create: %v", err)
		}

		sessions, err := p.ListActiveSessions(ctx, target)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(sessions) != 1 || sessions[0].Username != login.Username {
			t.Fatalf("expected session for %s, got %+v", login.Username, sessions)
		}
	})

	t.Run("Given an existing login When created again Then duplicate error", func(t *testing.T) {
		p := NewSimulatedProvisioner()

		if err := p.CreateLogin(ctx, target, login); err != nil {
			t.Fatalf("create: %v", err)
		}
		err := p.CreateLogin(ctx, target, login)
		if !errors.Is(err, ErrDuplicateUser) {
			t.Fatalf("expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("Given routers at two addresses When provisioned Then state is isolated", func(t *testing.T) {
		p := NewSimulatedProvisioner()
		other := Target{Address: "192.168.89.1", Port: 8728}

		if err := p.CreateLogin(ctx, target, login); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := p.CreateLogin(ctx, other, login); err != nil {
			t.Fatalf("same username on another router must be fine: %v", err)
		}

		sessions, _ := p.ListActiveSessions(ctx, other)
		if len(sessions) != 1 {
			t.Errorf("expected 1 session on second router, got %d", len(sessions))
		}
	})

	t.Run("Given a session When disconnected Then it is gone", func(t *testing.T) {
		p := NewSimulatedProvisioner()

		if err := p.CreateLogin(ctx, target, login); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := p.DisconnectSession(ctx, target, login.Username); err != nil {
			t.Fatalf("disconnect: %v", err)
		}

		err := p.DisconnectSession(ctx, target, login.Username)
		if !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Given an absent user When removed Then removal succeeds", func(t *testing.T) {
		p := NewSimulatedProvisioner()

		if err := p.RemoveLogin(ctx, target, "NEVERWAS"); err != nil {
			t.Fatalf("removing an absent user must succeed, got %v", err)
		}
	})

	t.Run("Given any target When tested Then it is reachable", func(t *testing.T) {
		p := NewSimulatedProvisioner()

		health, err := p.TestConnectivity(ctx, target)
		if err != nil {
			t.Fatalf("test: %v", err)
		}
		if !health.Reachable || health.Identity == "" {
			t.Errorf("expected healthy simulated router, got %+v", health)
		}
	})
}

func TestFormatUptimeLimit(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "01:00:00"},
		{90 * time.Minute, "01:30:00"},
		{24 * time.Hour, "24:00:00"},
		{45 * time.Second, "00:00:45"},
	}

	for _, c := range cases {
		if got := formatUptimeLimit(c.in); got != c.want {
			t.Errorf("formatUptimeLimit(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
