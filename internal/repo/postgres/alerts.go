package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/netmon/internal/domain"
)

// RecordAlerts stores all alerts of one cycle in a single batch.
func (s *Store) RecordAlerts(ctx context.Context, cycleID string, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	const q = `
		INSERT INTO alerts (cycle_id, probe_id, kind, description, subject, reason, count, window_seconds, raised_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	b := &pgx.Batch{}
	for _, a := range alerts {
		b.Queue(q, cycleID, string(a.ProbeID), a.Kind, a.Description, a.Subject, a.Reason, a.Count, a.WindowSec, a.RaisedAt)
	}
	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert alerts: %w", err)
	}
	s.log.Debug("alerts_recorded", zap.String("cycle", cycleID), zap.Int("count", len(alerts)))
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
SELECT cycle_id, probe_id, kind, description, subject, reason, count, window_seconds, raised_at
  FROM alerts
 ORDER BY raised_at DESC, id DESC
 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a       domain.Alert
			probeID string
		)
		if err := rows.Scan(&a.CycleID, &probeID, &a.Kind, &a.Description, &a.Subject,
			&a.Reason, &a.Count, &a.WindowSec, &a.RaisedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.ProbeID = domain.ProbeID(probeID)
		out = append(out, a)
	}
	return out, rows.Err()
}
