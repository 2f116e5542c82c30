package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// SimulatedProvisioner is an in-memory Provisioner for test and offline
// environments. Transport never fails; logical errors (duplicate user,
// missing session) behave like the real router so callers can be exercised
// without hardware. A created login immediately appears as an active session,
// simulating a customer who signs in right after purchase.
type SimulatedProvisioner struct {
	mu    sync.Mutex
	users map[string]map[string]Login   // router address -> username -> login
	live  map[string]map[string]Session // router address -> username -> session
	hosts int
}

// NewSimulatedProvisioner creates a new simulator
func NewSimulatedProvisioner() *SimulatedProvisioner {
	return &SimulatedProvisioner{
		users: make(map[string]map[string]Login),
		live:  make(map[string]map[string]Session),
	}
}

func (p *SimulatedProvisioner) routerUsers(target Target) map[string]Login {
	if p.users[target.Address] == nil {
		p.users[target.Address] = make(map[string]Login)
	}
	return p.users[target.Address]
}

func (p *SimulatedProvisioner) routerLive(target Target) map[string]Session {
	if p.live[target.Address] == nil {
		p.live[target.Address] = make(map[string]Session)
	}
	return p.live[target.Address]
}

// CreateLogin registers a login and starts a simulated session
func (p *SimulatedProvisioner) CreateLogin(ctx context.Context, target Target, login Login) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	users := p.routerUsers(target)
	if _, exists := users[login.Username]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateUser, login.Username)
	}
	users[login.Username] = login

	p.hosts++
	p.routerLive(target)[login.Username] = Session{
		Username:   login.Username,
		Address:    fmt.Sprintf("10.5.50.%d", p.hosts%250+2),
		MACAddress: fmt.Sprintf("02:00:00:00:%02X:%02X", p.hosts/256, p.hosts%256),
		Uptime:     "00:00:01",
	}

	log.Debug().
		Str("username", login.Username).
		Str("router", target.Address).
		Msg("[simulator] Hotspot login created")

	return nil
}

// RemoveLogin removes a login; removing an absent user is success
func (p *SimulatedProvisioner) RemoveLogin(ctx context.Context, target Target, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.routerUsers(target), username)
	delete(p.routerLive(target), username)

	return nil
}

// ListActiveSessions lists simulated sessions
func (p *SimulatedProvisioner) ListActiveSessions(ctx context.Context, target Target) ([]Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := p.routerLive(target)
	sessions := make([]Session, 0, len(live))
	for _, s := range live {
		sessions = append(sessions, s)
	}

	return sessions, nil
}

// DisconnectSession ends a simulated session
func (p *SimulatedProvisioner) DisconnectSession(ctx context.Context, target Target, username string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	live := p.routerLive(target)
	if _, ok := live[username]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, username)
	}
	delete(live, username)

	return nil
}

// TestConnectivity always reports a healthy simulated router
func (p *SimulatedProvisioner) TestConnectivity(ctx context.Context, target Target) (*Health, error) {
	return &Health{
		Reachable: true,
		Identity:  "simulated-router",
		Version:   "RouterOS 7.11.2 (simulated)",
		Uptime:    "2w3d15h30m45s",
		Message:   "connection successful (simulated)",
	}, nil
}
