package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// ========== Voucher Methods ==========

const voucherColumns = `id, created_at, updated_at, code, plan_id, plan_name,
               duration_minutes, price, currency, status, expires_at, zone_id, payment_id`

// CreateVoucher creates a new voucher. The unique constraint on code makes
// the store the authority on code collisions; a collision is reported via
// ON CONFLICT DO NOTHING rather than a constraint violation, so the
// surrounding transaction stays usable and callers can regenerate the code
// and retry inside it.
func (s *PostgresStore) CreateVoucher(ctx context.Context, voucher *models.Voucher) error {
	if voucher.ID == uuid.Nil {
		voucher.ID = uuid.New()
	}

	now := time.Now()
	voucher.CreatedAt = now
	voucher.UpdatedAt = now

	query := `
        INSERT INTO vouchers (
            id, created_at, updated_at, code, plan_id, plan_name,
            duration_minutes, price, currency, status, expires_at, zone_id, payment_id
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
        )
        ON CONFLICT (code) DO NOTHING`

	result, err := s.getDB().ExecContext(ctx, query,
		voucher.ID, voucher.CreatedAt, voucher.UpdatedAt, voucher.Code,
		voucher.PlanID, voucher.PlanName, voucher.DurationMinutes, voucher.Price,
		voucher.Currency, voucher.Status, voucher.ExpiresAt, voucher.ZoneID,
		voucher.PaymentID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDuplicateKey
	}

	return nil
}

func (s *PostgresStore) scanVoucher(row *sql.Row) (*models.Voucher, error) {
	voucher := &models.Voucher{}
	err := row.Scan(
		&voucher.ID, &voucher.CreatedAt, &voucher.UpdatedAt, &voucher.Code,
		&voucher.PlanID, &voucher.PlanName, &voucher.DurationMinutes, &voucher.Price,
		&voucher.Currency, &voucher.Status, &voucher.ExpiresAt, &voucher.ZoneID,
		&voucher.PaymentID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return voucher, nil
}

// GetVoucher gets a voucher by ID
func (s *PostgresStore) GetVoucher(ctx context.Context, id uuid.UUID) (*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`
	return s.scanVoucher(s.getDB().QueryRowContext(ctx, query, id))
}

// GetVoucherByCode gets a voucher by its code
func (s *PostgresStore) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`
	return s.scanVoucher(s.getDB().QueryRowContext(ctx, query, code))
}

// UpdateVoucher updates a voucher
func (s *PostgresStore) UpdateVoucher(ctx context.Context, voucher *models.Voucher) error {
	voucher.UpdatedAt = time.Now()

	query := `
        UPDATE vouchers SET
            updated_at = $2, status = $3, expires_at = $4, payment_id = $5
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		voucher.ID, voucher.UpdatedAt, voucher.Status, voucher.ExpiresAt,
		voucher.PaymentID,
	)
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

// DeleteVoucher deletes a voucher
func (s *PostgresStore) DeleteVoucher(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM vouchers WHERE id = $1", id)
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

// ListVouchers lists vouchers
func (s *PostgresStore) ListVouchers(ctx context.Context, limit, offset int) ([]*models.Voucher, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM vouchers").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + voucherColumns + `
        FROM vouchers
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	vouchers, err := scanVoucherRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return vouchers, count, nil
}

// ListExpiredVouchers lists vouchers past their validity window that have not
// yet been marked EXPIRED or USED
func (s *PostgresStore) ListExpiredVouchers(ctx context.Context, now time.Time) ([]*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + `
        FROM vouchers
        WHERE expires_at < $1 AND status IN ($2, $3)
        ORDER BY expires_at`

	rows, err := s.getDB().QueryContext(ctx, query, now,
		models.VoucherStatusUnused, models.VoucherStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVoucherRows(rows)
}

func scanVoucherRows(rows *sql.Rows) ([]*models.Voucher, error) {
	var vouchers []*models.Voucher
	for rows.Next() {
		voucher := &models.Voucher{}
		err := rows.Scan(
			&voucher.ID, &voucher.CreatedAt, &voucher.UpdatedAt, &voucher.Code,
			&voucher.PlanID, &voucher.PlanName, &voucher.DurationMinutes, &voucher.Price,
			&voucher.Currency, &voucher.Status, &voucher.ExpiresAt, &voucher.ZoneID,
			&voucher.PaymentID,
		)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, voucher)
	}
	return vouchers, nil
}
