package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/rs/zerolog/log"
)

// MikrotikProvisioner implements Provisioner over the RouterOS API.
// A connection is opened per operation and closed when done; the RouterOS
// API has no server-side session state worth pooling at hotspot scale.
type MikrotikProvisioner struct {
	connectTimeout time.Duration
}

// NewMikrotikProvisioner creates a provisioner for live MikroTik routers
func NewMikrotikProvisioner(connectTimeout time.Duration) *MikrotikProvisioner {
	return &MikrotikProvisioner{
		connectTimeout: connectTimeout,
	}
}

func (p *MikrotikProvisioner) dial(target Target) (*routeros.Client, error) {
	addr := fmt.Sprintf("%s:%d", target.Address, target.Port)

	client, err := routeros.DialTimeout(addr, target.Username, target.Password, p.connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, addr, err)
	}

	return client, nil
}

// CreateLogin adds a hotspot user with an uptime limit
func (p *MikrotikProvisioner) CreateLogin(ctx context.Context, target Target, login Login) error {
	client, err := p.dial(target)
	if err != nil {
		return err
	}
	defer client.Close()

	args := []string{
		"/ip/hotspot/user/add",
		"=name=" + login.Username,
		"=password=" + login.Password,
		"=profile=" + login.Profile,
		"=limit-uptime=" + formatUptimeLimit(login.TimeLimit),
	}
	if login.Comment != "" {
		args = append(args, "=comment="+login.Comment)
	}

	if _, err := client.Run(args...); err != nil {
		if strings.Contains(err.Error(), "already have user") {
			return fmt.Errorf("%w: %s", ErrDuplicateUser, login.Username)
		}
		return fmt.Errorf("%w: add user: %v", ErrConnection, err)
	}

	log.Info().
		Str("username", login.Username).
		Str("router", target.Address).
		Msg("Hotspot login created")

	return nil
}

// RemoveLogin removes a hotspot user. An absent user is treated as success.
func (p *MikrotikProvisioner) RemoveLogin(ctx context.Context, target Target, username string) error {
	client, err := p.dial(target)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Run("/ip/hotspot/user/print", "?name="+username)
	if err != nil {
		return fmt.Errorf("%w: find user: %v", ErrConnection, err)
	}

	if len(reply.Re) == 0 {
		return nil
	}

	id := reply.Re[0].Map[".id"]
	if _, err := client.Run("/ip/hotspot/user/remove", "=.id="+id); err != nil {
		return fmt.Errorf("%w: remove user: %v", ErrConnection, err)
	}

	log.Info().
		Str("username", username).
		Str("router", target.Address).
		Msg("Hotspot login removed")

	return nil
}

// ListActiveSessions returns the router's live hotspot sessions
func (p *MikrotikProvisioner) ListActiveSessions(ctx context.Context, target Target) ([]Session, error) {
	client, err := p.dial(target)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	reply, err := client.Run("/ip/hotspot/active/print")
	if err != nil {
		return nil, fmt.Errorf("%w: list active: %v", ErrConnection, err)
	}

	sessions := make([]Session, 0, len(reply.Re))
	for _, re := range reply.Re {
		sessions = append(sessions, Session{
			Username:   re.Map["user"],
			Address:    re.Map["address"],
			MACAddress: re.Map["mac-address"],
			Uptime:     re.Map["uptime"],
			BytesIn:    parseInt64(re.Map["bytes-in"]),
			BytesOut:   parseInt64(re.Map["bytes-out"]),
		})
	}

	return sessions, nil
}

// DisconnectSession ends a live session for the given username
func (p *MikrotikProvisioner) DisconnectSession(ctx context.Context, target Target, username string) error {
	client, err := p.dial(target)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Run("/ip/hotspot/active/print", "?user="+username)
	if err != nil {
		return fmt.Errorf("%w: find session: %v", ErrConnection, err)
	}

	if len(reply.Re) == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, username)
	}

	id := reply.Re[0].Map[".id"]
	if _, err := client.Run("/ip/hotspot/active/remove", "=.id="+id); err != nil {
		return fmt.Errorf("%w: remove session: %v", ErrConnection, err)
	}

	log.Info().
		Str("username", username).
		Str("router", target.Address).
		Msg("Hotspot session disconnected")

	return nil
}

// TestConnectivity reads router identity and resource info
func (p *MikrotikProvisioner) TestConnectivity(ctx context.Context, target Target) (*Health, error) {
	client, err := p.dial(target)
	if err != nil {
		return &Health{Reachable: false, Message: err.Error()}, err
	}
	defer client.Close()

	identity, err := client.Run("/system/identity/print")
	if err != nil {
		return &Health{Reachable: false, Message: err.Error()},
			fmt.Errorf("%w: identity: %v", ErrConnection, err)
	}

	resource, err := client.Run("/system/resource/print")
	if err != nil {
		return &Health{Reachable: false, Message: err.Error()},
			fmt.Errorf("%w: resource: %v", ErrConnection, err)
	}

	health := &Health{Reachable: true, Message: "connection successful"}
	if len(identity.Re) > 0 {
		health.Identity = identity.Re[0].Map["name"]
	}
	if len(resource.Re) > 0 {
		health.Version = resource.Re[0].Map["version"]
		health.Uptime = resource.Re[0].Map["uptime"]
	}

	return health, nil
}

// formatUptimeLimit renders a duration as RouterOS HH:MM:SS
func formatUptimeLimit(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
