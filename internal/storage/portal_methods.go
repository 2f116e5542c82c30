package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// ========== Portal Config Methods ==========

// GetPortalConfig returns the portal configuration record
func (s *PostgresStore) GetPortalConfig(ctx context.Context) (*models.PortalConfig, error) {
	query := `
        SELECT id, created_at, updated_at, business_name, logo_url, merchant_code,
               payment_instructions, theme
        FROM portal_config
        LIMIT 1`

	cfg := &models.PortalConfig{}
	err := s.getDB().QueryRowContext(ctx, query).Scan(
		&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt, &cfg.BusinessName, &cfg.LogoURL,
		&cfg.MerchantCode, &cfg.PaymentInstructions, &cfg.Theme,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// SavePortalConfig creates or updates the single portal configuration record
func (s *PostgresStore) SavePortalConfig(ctx context.Context, cfg *models.PortalConfig) error {
	existing, err := s.GetPortalConfig(ctx)
	now := time.Now()

	if err == ErrNotFound {
		if cfg.ID == uuid.Nil {
			cfg.ID = uuid.New()
		}
		cfg.CreatedAt = now
		cfg.UpdatedAt = now

		query := `
            INSERT INTO portal_config (
                id, created_at, updated_at, business_name, logo_url,
                merchant_code, payment_instructions, theme
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		_, err := s.getDB().ExecContext(ctx, query,
			cfg.ID, cfg.CreatedAt, cfg.UpdatedAt, cfg.BusinessName, cfg.LogoURL,
			cfg.MerchantCode, cfg.PaymentInstructions, cfg.Theme,
		)
		return err
	}
	if err != nil {
		return err
	}

	cfg.ID = existing.ID
	cfg.CreatedAt = existing.CreatedAt
	cfg.UpdatedAt = now

	query := `
        UPDATE portal_config SET
            updated_at = $2, business_name = $3, logo_url = $4,
            merchant_code = $5, payment_instructions = $6, theme = $7
        WHERE id = $1`

	_, err = s.getDB().ExecContext(ctx, query,
		cfg.ID, cfg.UpdatedAt, cfg.BusinessName, cfg.LogoURL, cfg.MerchantCode,
		cfg.PaymentInstructions, cfg.Theme,
	)
	return err
}
