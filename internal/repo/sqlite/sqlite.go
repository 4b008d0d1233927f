// Package sqlite persists samples and alerts in a local SQLite file,
// for single-host setups without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamed0406/netmon/internal/domain"
	"github.com/hamed0406/netmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes writers
}

// Open creates (or opens) the database at path and its tables.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	probe_id TEXT NOT NULL,
	kind TEXT,
	description TEXT,
	ok INTEGER,
	reason TEXT,
	attributes TEXT,
	results TEXT,
	duration_ms REAL,
	cycle_id TEXT,
	checked_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_samples_probe ON samples (probe_id, id);
CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT,
	probe_id TEXT,
	kind TEXT,
	description TEXT,
	subject TEXT,
	reason TEXT,
	count INTEGER,
	window_seconds INTEGER,
	raised_at TEXT
);`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Append(ctx context.Context, sm *domain.Sample) error {
	attrs, err := json.Marshal(sm.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	results, err := json.Marshal(sm.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `INSERT INTO samples
		(probe_id, kind, description, ok, reason, attributes, results, duration_ms, cycle_id, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sm.ProbeID), sm.Kind, sm.Description, boolToInt(sm.OK), sm.Reason,
		string(attrs), string(results), sm.DurationMS, sm.CycleID,
		sm.CheckedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, id domain.ProbeID, limit int) ([]domain.Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT probe_id, kind, description, ok, reason, attributes, results, duration_ms, cycle_id, checked_at
		FROM samples WHERE probe_id = ? ORDER BY id DESC LIMIT ?`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.Sample
	for rows.Next() {
		var (
			sm             domain.Sample
			probeID, ts    string
			attrs, results string
			ok             int
		)
		if err := rows.Scan(&probeID, &sm.Kind, &sm.Description, &ok, &sm.Reason, &attrs, &results, &sm.DurationMS, &sm.CycleID, &ts); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sm.ProbeID = domain.ProbeID(probeID)
		sm.OK = ok == 1
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			sm.CheckedAt = t
		}
		if err := json.Unmarshal([]byte(attrs), &sm.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		if err := json.Unmarshal([]byte(results), &sm.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *Store) RecordAlerts(ctx context.Context, cycleID string, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	for _, a := range alerts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO alerts
			(cycle_id, probe_id, kind, description, subject, reason, count, window_seconds, raised_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID, string(a.ProbeID), a.Kind, a.Description, a.Subject, a.Reason, a.Count, a.WindowSec,
			a.RaisedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Recent(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT cycle_id, probe_id, kind, description, subject, reason, count, window_seconds, raised_at
		FROM alerts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a           domain.Alert
			probeID, ts string
		)
		if err := rows.Scan(&a.CycleID, &probeID, &a.Kind, &a.Description, &a.Subject, &a.Reason, &a.Count, &a.WindowSec, &ts); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.ProbeID = domain.ProbeID(probeID)
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			a.RaisedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
