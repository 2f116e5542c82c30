package models

import (
	"time"

	"github.com/google/uuid"
)

// VoucherStatus represents the lifecycle state of a voucher
type VoucherStatus string

const (
	VoucherStatusUnused  VoucherStatus = "UNUSED"
	VoucherStatusActive  VoucherStatus = "ACTIVE"
	VoucherStatusUsed    VoucherStatus = "USED"
	VoucherStatusExpired VoucherStatus = "EXPIRED"
)

// Voucher is a time-boxed access grant. Plan terms are snapshotted at
// issuance time; later catalog edits never change an issued voucher.
type Voucher struct {
	BaseModel

	Code string `json:"code" db:"code"`

	PlanID          string `json:"planId" db:"plan_id"`
	PlanName        string `json:"planName" db:"plan_name"`
	DurationMinutes int    `json:"durationMinutes" db:"duration_minutes"`
	Price           int64  `json:"price" db:"price"`
	Currency        string `json:"currency" db:"currency"`

	Status    VoucherStatus `json:"status" db:"status"`
	ExpiresAt time.Time     `json:"expiresAt" db:"expires_at"`

	ZoneID uuid.UUID `json:"zoneId" db:"zone_id"`

	// PaymentID is nil for vouchers generated in bulk by an administrator
	PaymentID *uuid.UUID `json:"paymentId,omitempty" db:"payment_id"`
}

// Expired reports whether the wall-clock validity window has elapsed
func (v *Voucher) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// Redeemable reports whether the voucher can still grant access
func (v *Voucher) Redeemable(now time.Time) bool {
	if v.Status != VoucherStatusUnused && v.Status != VoucherStatusActive {
		return false
	}
	return !v.Expired(now)
}
