package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Zone methods
	CreateZone(ctx context.Context, zone *models.Zone) error
	GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error)
	UpdateZone(ctx context.Context, zone *models.Zone) error
	DeleteZone(ctx context.Context, id uuid.UUID) error
	ListZones(ctx context.Context, limit, offset int) ([]*models.Zone, int64, error)

	// Payment methods
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	ListPayments(ctx context.Context, limit, offset int) ([]*models.Payment, int64, error)

	// MarkPaymentSucceeded and MarkPaymentFailed atomically transition a
	// payment out of PENDING. They return false when the payment was already
	// terminal, which callers use to deduplicate concurrent confirmations.
	MarkPaymentSucceeded(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error)

	SetPaymentVoucher(ctx context.Context, paymentID, voucherID uuid.UUID) error
	SetProvisionState(ctx context.Context, paymentID uuid.UUID, state models.ProvisionState) error
	ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]*models.Payment, error)

	// Voucher methods
	CreateVoucher(ctx context.Context, voucher *models.Voucher) error
	GetVoucher(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	UpdateVoucher(ctx context.Context, voucher *models.Voucher) error
	DeleteVoucher(ctx context.Context, id uuid.UUID) error
	ListVouchers(ctx context.Context, limit, offset int) ([]*models.Voucher, int64, error)
	ListExpiredVouchers(ctx context.Context, now time.Time) ([]*models.Voucher, error)

	// Router session methods
	CreateSession(ctx context.Context, session *models.RouterSession) error
	EndSession(ctx context.Context, zoneID uuid.UUID, username string) error
	ListActiveSessions(ctx context.Context, zoneID uuid.UUID) ([]*models.RouterSession, error)
	CountActiveSessions(ctx context.Context, zoneID uuid.UUID) (int, error)
	ReplaceActiveSessions(ctx context.Context, zoneID uuid.UUID, sessions []*models.RouterSession) error

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Portal config methods
	GetPortalConfig(ctx context.Context) (*models.PortalConfig, error)
	SavePortalConfig(ctx context.Context, cfg *models.PortalConfig) error

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	ZoneID    *uuid.UUID
	PaymentID *uuid.UUID
	VoucherID *uuid.UUID
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}
