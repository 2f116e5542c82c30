package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// ========== Zone Methods ==========

// CreateZone creates a new zone
func (s *PostgresStore) CreateZone(ctx context.Context, zone *models.Zone) error {
	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}

	now := time.Now()
	zone.CreatedAt = now
	zone.UpdatedAt = now

	query := `
        INSERT INTO zones (
            id, created_at, updated_at, name, location, router_address,
            router_port, api_user, api_password_cipher, max_users, is_active, tags
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		zone.ID, zone.CreatedAt, zone.UpdatedAt, zone.Name, zone.Location,
		zone.RouterAddress, zone.RouterPort, zone.APIUser, zone.APIPasswordCipher,
		zone.MaxUsers, zone.IsActive, zone.Tags,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetZone gets a zone by ID
func (s *PostgresStore) GetZone(ctx context.Context, id uuid.UUID) (*models.Zone, error) {
	query := `
        SELECT id, created_at, updated_at, name, location, router_address,
               router_port, api_user, api_password_cipher, max_users, is_active,
               last_seen_at, tags
        FROM zones
        WHERE id = $1`

	zone := &models.Zone{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&zone.ID, &zone.CreatedAt, &zone.UpdatedAt, &zone.Name, &zone.Location,
		&zone.RouterAddress, &zone.RouterPort, &zone.APIUser, &zone.APIPasswordCipher,
		&zone.MaxUsers, &zone.IsActive, &zone.LastSeenAt, &zone.Tags,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return zone, nil
}

// UpdateZone updates a zone
func (s *PostgresStore) UpdateZone(ctx context.Context, zone *models.Zone) error {
	zone.UpdatedAt = time.Now()

	query := `
        UPDATE zones SET
            updated_at = $2, name = $3, location = $4, router_address = $5,
            router_port = $6, api_user = $7, api_password_cipher = $8,
            max_users = $9, is_active = $10, last_seen_at = $11, tags = $12
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		zone.ID, zone.UpdatedAt, zone.Name, zone.Location, zone.RouterAddress,
		zone.RouterPort, zone.APIUser, zone.APIPasswordCipher, zone.MaxUsers,
		zone.IsActive, zone.LastSeenAt, zone.Tags,
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

// DeleteZone deletes a zone
func (s *PostgresStore) DeleteZone(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM zones WHERE id = $1", id)
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

// ListZones lists zones
func (s *PostgresStore) ListZones(ctx context.Context, limit, offset int) ([]*models.Zone, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM zones").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, name, location, router_address,
               router_port, api_user, api_password_cipher, max_users, is_active,
               last_seen_at, tags
        FROM zones
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var zones []*models.Zone
	for rows.Next() {
		zone := &models.Zone{}
		err := rows.Scan(
			&zone.ID, &zone.CreatedAt, &zone.UpdatedAt, &zone.Name, &zone.Location,
			&zone.RouterAddress, &zone.RouterPort, &zone.APIUser, &zone.APIPasswordCipher,
			&zone.MaxUsers, &zone.IsActive, &zone.LastSeenAt, &zone.Tags,
		)
		if err != nil {
			return nil, 0, err
		}
		zones = append(zones, zone)
	}

	return zones, count, nil
}
