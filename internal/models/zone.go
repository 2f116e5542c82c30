package models

import (
	"time"
)

// Zone represents a hotspot deployment location with one managed router
type Zone struct {
	BaseModel

	Name     string `json:"name" db:"name"`
	Location string `json:"location" db:"location"`

	// Router connection parameters. The API password is stored AES-GCM
	// encrypted and never serialized.
	RouterAddress     string `json:"routerAddress" db:"router_address"`
	RouterPort        int    `json:"routerPort" db:"router_port"`
	APIUser           string `json:"apiUser" db:"api_user"`
	APIPasswordCipher []byte `json:"-" db:"api_password_cipher"`

	// MaxUsers is the maximum number of concurrent logins for the zone.
	// Enforcement is a policy decision, see billing.Coordinator.
	MaxUsers int  `json:"maxUsers" db:"max_users"`
	IsActive bool `json:"isActive" db:"is_active"`

	LastSeenAt *time.Time `json:"lastSeenAt,omitempty" db:"last_seen_at"`

	Tags Variables `json:"tags,omitempty" db:"tags"`
}

// ZoneHealth is a diagnostic snapshot returned by a connectivity test
type ZoneHealth struct {
	Reachable bool   `json:"reachable"`
	Identity  string `json:"identity,omitempty"`
	Version   string `json:"version,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
	Message   string `json:"message,omitempty"`
}
