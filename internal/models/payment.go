package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment intent.
// A payment transitions PENDING -> {SUCCEEDED, FAILED} exactly once.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// PaymentProvider identifies the charge channel
type PaymentProvider string

const (
	ProviderMTN    PaymentProvider = "MTN_MOMO"
	ProviderAirtel PaymentProvider = "AIRTEL_MONEY"
	ProviderCash   PaymentProvider = "CASH"
)

// ProvisionState tracks router provisioning separately from the payment
// outcome so a confirmed payment with an unreachable router is recoverable.
type ProvisionState string

const (
	ProvisionStateNone        ProvisionState = "NONE"
	ProvisionStatePending     ProvisionState = "PENDING"
	ProvisionStateProvisioned ProvisionState = "PROVISIONED"
	ProvisionStateFailed      ProvisionState = "FAILED"
)

// Payment represents one attempt to pay for a plan
type Payment struct {
	BaseModel

	// Reference is the provider-facing payment reference used for status
	// polling and webhook correlation.
	Reference  string          `json:"reference" db:"reference"`
	ExternalID string          `json:"externalId" db:"external_id"`
	Provider   PaymentProvider `json:"provider" db:"provider"`

	PhoneNumber string `json:"phoneNumber" db:"phone_number"`

	PlanID   string `json:"planId" db:"plan_id"`
	Amount   int64  `json:"amount" db:"amount"`
	Currency string `json:"currency" db:"currency"`

	Status         PaymentStatus  `json:"status" db:"status"`
	ProvisionState ProvisionState `json:"provisionState" db:"provision_state"`

	ZoneID    uuid.UUID  `json:"zoneId" db:"zone_id"`
	VoucherID *uuid.UUID `json:"voucherId,omitempty" db:"voucher_id"`

	ResolvedAt *time.Time `json:"resolvedAt,omitempty" db:"resolved_at"`

	Metadata Variables `json:"metadata,omitempty" db:"metadata"`
}

// Terminal reports whether the payment has reached a terminal status
func (p *Payment) Terminal() bool {
	return p.Status == PaymentStatusSucceeded || p.Status == PaymentStatusFailed
}
