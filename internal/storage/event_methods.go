package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wifibill/hotspot-server/internal/models"
)

// ========== Event Log Methods ==========

// CreateEventLog creates an event log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO event_logs (
            id, created_at, zone_id, payment_id, voucher_id, type, level,
            description, details
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.ZoneID, event.PaymentID, event.VoucherID,
		event.Type, event.Level, event.Description, event.Details,
	)

	return err
}

// ListEventLogs lists event logs with filters
func (s *PostgresStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	idx := 1

	addFilter := func(clause string, value interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", clause, idx)
		args = append(args, value)
		idx++
	}

	if filters.ZoneID != nil {
		addFilter("zone_id", *filters.ZoneID)
	}
	if filters.PaymentID != nil {
		addFilter("payment_id", *filters.PaymentID)
	}
	if filters.VoucherID != nil {
		addFilter("voucher_id", *filters.VoucherID)
	}
	if filters.Type != nil {
		addFilter("type", *filters.Type)
	}
	if filters.Level != nil {
		addFilter("level", *filters.Level)
	}
	if filters.StartTime != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filters.StartTime)
		idx++
	}
	if filters.EndTime != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filters.EndTime)
		idx++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM event_logs "+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT id, created_at, zone_id, payment_id, voucher_id, type, level,
               description, details
        FROM event_logs %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d`, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.ZoneID, &event.PaymentID,
			&event.VoucherID, &event.Type, &event.Level, &event.Description,
			&event.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, count, nil
}
