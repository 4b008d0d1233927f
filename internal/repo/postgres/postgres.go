package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/netmon/internal/domain"
	"github.com/hamed0406/netmon/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS samples (
  id          BIGSERIAL PRIMARY KEY,
  probe_id    TEXT NOT NULL,
  kind        TEXT NOT NULL,
  description TEXT NOT NULL,
  ok          BOOLEAN NOT NULL,
  reason      TEXT NOT NULL,
  attributes  JSONB NOT NULL DEFAULT '{}',
  results     JSONB NOT NULL DEFAULT '{}',
  duration_ms DOUBLE PRECISION NOT NULL,
  cycle_id    TEXT NOT NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_probe_time ON samples (probe_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  id             BIGSERIAL PRIMARY KEY,
  cycle_id       TEXT NOT NULL,
  probe_id       TEXT NOT NULL,
  kind           TEXT NOT NULL,
  description    TEXT NOT NULL,
  subject        TEXT NOT NULL,
  reason         TEXT NOT NULL,
  count          INTEGER NOT NULL,
  window_seconds INTEGER NOT NULL,
  raised_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_raised_at ON alerts (raised_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- SampleStore ----

func (s *Store) Append(ctx context.Context, sm *domain.Sample) error {
	attrs, err := json.Marshal(orEmpty(sm.Attributes))
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	results, err := json.Marshal(orEmpty(sm.Results))
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO samples
		   (probe_id, kind, description, ok, reason, attributes, results, duration_ms, cycle_id, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(sm.ProbeID), sm.Kind, sm.Description, sm.OK, sm.Reason,
		attrs, results, sm.DurationMS, sm.CycleID, sm.CheckedAt,
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
	rows, err := s.pool.Query(ctx, `
SELECT probe_id, kind, description, ok, reason, attributes, results, duration_ms, cycle_id, checked_at
  FROM samples
 WHERE probe_id = $1
 ORDER BY checked_at DESC, id DESC
 LIMIT $2`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.Sample
	for rows.Next() {
		var (
			sm             domain.Sample
			probeID        string
			attrs, results []byte
		)
		if err := rows.Scan(&probeID, &sm.Kind, &sm.Description, &sm.OK, &sm.Reason,
			&attrs, &results, &sm.DurationMS, &sm.CycleID, &sm.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sm.ProbeID = domain.ProbeID(probeID)
		if err := json.Unmarshal(attrs, &sm.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		if err := json.Unmarshal(results, &sm.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func orEmpty[M ~map[string]V, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
