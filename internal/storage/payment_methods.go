package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// ========== Payment Methods ==========

const paymentColumns = `id, created_at, updated_at, reference, external_id, provider,
               phone_number, plan_id, amount, currency, status, provision_state,
               zone_id, voucher_id, resolved_at, metadata`

// CreatePayment creates a new payment
func (s *PostgresStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}

	now := time.Now()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	if payment.ProvisionState == "" {
		payment.ProvisionState = models.ProvisionStateNone
	}

	query := `
        INSERT INTO payments (
            id, created_at, updated_at, reference, external_id, provider,
            phone_number, plan_id, amount, currency, status, provision_state,
            zone_id, voucher_id, resolved_at, metadata
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		payment.ID, payment.CreatedAt, payment.UpdatedAt, payment.Reference,
		payment.ExternalID, payment.Provider, payment.PhoneNumber, payment.PlanID,
		payment.Amount, payment.Currency, payment.Status, payment.ProvisionState,
		payment.ZoneID, payment.VoucherID, payment.ResolvedAt, payment.Metadata,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

func (s *PostgresStore) scanPayment(row *sql.Row) (*models.Payment, error) {
	payment := &models.Payment{}
	err := row.Scan(
		&payment.ID, &payment.CreatedAt, &payment.UpdatedAt, &payment.Reference,
		&payment.ExternalID, &payment.Provider, &payment.PhoneNumber, &payment.PlanID,
		&payment.Amount, &payment.Currency, &payment.Status, &payment.ProvisionState,
		&payment.ZoneID, &payment.VoucherID, &payment.ResolvedAt, &payment.Metadata,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return payment, nil
}

// GetPayment gets a payment by ID
func (s *PostgresStore) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return s.scanPayment(s.getDB().QueryRowContext(ctx, query, id))
}

// GetPaymentByReference gets a payment by its provider reference
func (s *PostgresStore) GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`
	return s.scanPayment(s.getDB().QueryRowContext(ctx, query, reference))
}

// ListPayments lists payments
func (s *PostgresStore) ListPayments(ctx context.Context, limit, offset int) ([]*models.Payment, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + paymentColumns + `
        FROM payments
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		err := rows.Scan(
			&payment.ID, &payment.CreatedAt, &payment.UpdatedAt, &payment.Reference,
			&payment.ExternalID, &payment.Provider, &payment.PhoneNumber, &payment.PlanID,
			&payment.Amount, &payment.Currency, &payment.Status, &payment.ProvisionState,
			&payment.ZoneID, &payment.VoucherID, &payment.ResolvedAt, &payment.Metadata,
		)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, payment)
	}

	return payments, count, nil
}

// MarkPaymentSucceeded transitions a payment PENDING -> SUCCEEDED. The status
// guard in the WHERE clause is the single linearization point for concurrent
// webhook and polling confirmations: exactly one caller observes true.
func (s *PostgresStore) MarkPaymentSucceeded(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.resolvePayment(ctx, id, models.PaymentStatusSucceeded)
}

// MarkPaymentFailed transitions a payment PENDING -> FAILED
func (s *PostgresStore) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.resolvePayment(ctx, id, models.PaymentStatusFailed)
}

func (s *PostgresStore) resolvePayment(ctx context.Context, id uuid.UUID, status models.PaymentStatus) (bool, error) {
	now := time.Now()

	query := `
        UPDATE payments SET status = $2, resolved_at = $3, updated_at = $3
        WHERE id = $1 AND status = $4`

	result, err := s.getDB().ExecContext(ctx, query, id, status, now, models.PaymentStatusPending)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows == 1, nil
}

// SetPaymentVoucher links an issued voucher to a payment
func (s *PostgresStore) SetPaymentVoucher(ctx context.Context, paymentID, voucherID uuid.UUID) error {
	query := `UPDATE payments SET voucher_id = $2, updated_at = $3 WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, paymentID, voucherID, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SetProvisionState updates the router provisioning state of a payment
func (s *PostgresStore) SetProvisionState(ctx context.Context, paymentID uuid.UUID, state models.ProvisionState) error {
	query := `UPDATE payments SET provision_state = $2, updated_at = $3 WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, paymentID, state, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListStalePendingPayments lists payments still PENDING created before the cutoff
func (s *PostgresStore) ListStalePendingPayments(ctx context.Context, olderThan time.Time) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + `
        FROM payments
        WHERE status = $1 AND created_at < $2
        ORDER BY created_at`

	rows, err := s.getDB().QueryContext(ctx, query, models.PaymentStatusPending, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		err := rows.Scan(
			&payment.ID, &payment.CreatedAt, &payment.UpdatedAt, &payment.Reference,
			&payment.ExternalID, &payment.Provider, &payment.PhoneNumber, &payment.PlanID,
			&payment.Amount, &payment.Currency, &payment.Status, &payment.ProvisionState,
			&payment.ZoneID, &payment.VoucherID, &payment.ResolvedAt, &payment.Metadata,
		)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, nil
}
