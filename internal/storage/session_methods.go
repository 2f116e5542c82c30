package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// ========== Router Session Methods ==========

// CreateSession records a new active router session
func (s *PostgresStore) CreateSession(ctx context.Context, session *models.RouterSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	now := time.Now()
	session.CreatedAt = now
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}

	query := `
        INSERT INTO router_sessions (
            id, created_at, zone_id, username, address, mac_address, uptime,
            bytes_in, bytes_out, status, started_at, ended_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		session.ID, session.CreatedAt, session.ZoneID, session.Username,
		session.Address, session.MACAddress, session.Uptime, session.BytesIn,
		session.BytesOut, session.Status, session.StartedAt, session.EndedAt,
	)

	return err
}

// EndSession marks all active sessions for a username on a zone as ended
func (s *PostgresStore) EndSession(ctx context.Context, zoneID uuid.UUID, username string) error {
	query := `
        UPDATE router_sessions SET status = $3, ended_at = $4
        WHERE zone_id = $1 AND username = $2 AND status = $5`

	result, err := s.getDB().ExecContext(ctx, query,
		zoneID, username, models.SessionStatusEnded, time.Now(),
		models.SessionStatusActive,
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

// ListActiveSessions lists active sessions for a zone
func (s *PostgresStore) ListActiveSessions(ctx context.Context, zoneID uuid.UUID) ([]*models.RouterSession, error) {
	query := `
        SELECT id, created_at, zone_id, username, address, mac_address, uptime,
               bytes_in, bytes_out, status, started_at, ended_at
        FROM router_sessions
        WHERE zone_id = $1 AND status = $2
        ORDER BY started_at DESC`

	rows, err := s.getDB().QueryContext(ctx, query, zoneID, models.SessionStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.RouterSession
	for rows.Next() {
		session := &models.RouterSession{}
		err := rows.Scan(
			&session.ID, &session.CreatedAt, &session.ZoneID, &session.Username,
			&session.Address, &session.MACAddress, &session.Uptime, &session.BytesIn,
			&session.BytesOut, &session.Status, &session.StartedAt, &session.EndedAt,
		)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// CountActiveSessions counts active sessions for a zone
func (s *PostgresStore) CountActiveSessions(ctx context.Context, zoneID uuid.UUID) (int, error) {
	var count int
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM router_sessions WHERE zone_id = $1 AND status = $2",
		zoneID, models.SessionStatusActive,
	).Scan(&count)
	return count, err
}

// ReplaceActiveSessions replaces the stored active-session view of a zone with
// a fresh snapshot from the router. Sessions no longer present are ended.
func (s *PostgresStore) ReplaceActiveSessions(ctx context.Context, zoneID uuid.UUID, sessions []*models.RouterSession) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	pgTx := tx.(*PostgresStore)

	_, err = pgTx.getDB().ExecContext(ctx,
		"UPDATE router_sessions SET status = $2, ended_at = $3 WHERE zone_id = $1 AND status = $4",
		zoneID, models.SessionStatusEnded, time.Now(), models.SessionStatusActive,
	)
	if err != nil {
		return err
	}

	for _, session := range sessions {
		session.ZoneID = zoneID
		if err := pgTx.CreateSession(ctx, session); err != nil {
			return err
		}
	}

	return tx.Commit()
}
