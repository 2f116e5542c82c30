package router

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	// ErrConnection means the router could not be reached or authenticated.
	// Retryable with backoff.
	ErrConnection = errors.New("router connection failed")
	// ErrDuplicateUser means the login username already exists on the router
	ErrDuplicateUser = errors.New("hotspot user already exists")
	// ErrSessionNotFound means no matching active session exists
	ErrSessionNotFound = errors.New("active session not found")
	// ErrCapacityExceeded means the zone is at its concurrent-login limit
	ErrCapacityExceeded = errors.New("zone capacity exceeded")
)

// Target holds resolved connection parameters for one zone's router
type Target struct {
	ZoneID   uuid.UUID
	Address  string
	Port     int
	Username string
	Password string
}

// Login describes a time-boxed hotspot login to create
type Login struct {
	Username  string
	Password  string
	Profile   string
	TimeLimit time.Duration
	Comment   string
}

// Session is a snapshot of one live login as reported by the router
type Session struct {
	Username   string
	Address    string
	MACAddress string
	Uptime     string
	BytesIn    int64
	BytesOut   int64
}

// Health is a diagnostic snapshot from a connectivity test
type Health struct {
	Reachable bool
	Identity  string
	Version   string
	Uptime    string
	Message   string
}

// Provisioner manages hotspot logins on a zone's router. The concrete
// variant (live or simulator) is chosen once at startup; it is never
// switched at call time.
type Provisioner interface {
	// CreateLogin adds a time-boxed login on the target router
	CreateLogin(ctx context.Context, target Target, login Login) error

	// RemoveLogin removes a login. Removing an absent user is success:
	// the desired state is already reached.
	RemoveLogin(ctx context.Context, target Target, username string) error

	// ListActiveSessions returns the router's current view of live logins.
	// The view may be stale by the polling interval.
	ListActiveSessions(ctx context.Context, target Target) ([]Session, error)

	// DisconnectSession forcibly ends a live session
	DisconnectSession(ctx context.Context, target Target, username string) error

	// TestConnectivity is diagnostic only and has no side effects
	TestConnectivity(ctx context.Context, target Target) (*Health, error)
}
