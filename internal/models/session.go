package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the state of a router session
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "ACTIVE"
	SessionStatusEnded  SessionStatus = "ENDED"
)

// RouterSession is a live or historical network login on a zone's router,
// keyed by the voucher code used as the hotspot username.
type RouterSession struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	ZoneID   uuid.UUID `json:"zoneId" db:"zone_id"`
	Username string    `json:"username" db:"username"`

	Address    string `json:"address" db:"address"`
	MACAddress string `json:"macAddress" db:"mac_address"`

	Uptime   string `json:"uptime" db:"uptime"`
	BytesIn  int64  `json:"bytesIn" db:"bytes_in"`
	BytesOut int64  `json:"bytesOut" db:"bytes_out"`

	Status    SessionStatus `json:"status" db:"status"`
	StartedAt time.Time     `json:"startedAt" db:"started_at"`
	EndedAt   *time.Time    `json:"endedAt,omitempty" db:"ended_at"`
}
