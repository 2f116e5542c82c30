package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an audit log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	ZoneID    *uuid.UUID `json:"zoneId,omitempty" db:"zone_id"`
	PaymentID *uuid.UUID `json:"paymentId,omitempty" db:"payment_id"`
	VoucherID *uuid.UUID `json:"voucherId,omitempty" db:"voucher_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Payment events
	EventTypePaymentInitiated EventType = "PAYMENT_INITIATED"
	EventTypePaymentCompleted EventType = "PAYMENT_COMPLETED"
	EventTypePaymentFailed    EventType = "PAYMENT_FAILED"
	EventTypePaymentExpired   EventType = "PAYMENT_EXPIRED"

	// Voucher events
	EventTypeVoucherIssued  EventType = "VOUCHER_ISSUED"
	EventTypeVoucherExpired EventType = "VOUCHER_EXPIRED"

	// Provisioning events
	EventTypeProvisioned        EventType = "ROUTER_PROVISIONED"
	EventTypeProvisionFailed    EventType = "PROVISION_FAILED"
	EventTypeProvisionRetry     EventType = "PROVISION_RETRY"
	EventTypeSessionDisconnect  EventType = "SESSION_DISCONNECTED"
	EventTypeZoneUp             EventType = "ZONE_UP"
	EventTypeZoneDown           EventType = "ZONE_DOWN"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)
