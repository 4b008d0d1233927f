package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/netmon/internal/domain"
	"github.com/hamed0406/netmon/internal/repo"
)

const DefaultLimit = 500

// Store keeps the newest samples of every probe and the newest alerts in
// memory. Older entries are discarded once a limit is reached.
type Store struct {
	mu      sync.RWMutex
	limit   int
	samples map[domain.ProbeID][]domain.Sample
	alerts  []domain.Alert
}

var _ repo.Store = (*Store)(nil)

// New returns a store holding at most limit samples per probe and limit
// alerts. A limit below 1 means DefaultLimit.
func New(limit int) *Store {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Store{
		limit:   limit,
		samples: make(map[domain.ProbeID][]domain.Sample),
		alerts:  make([]domain.Alert, 0, 16),
	}
}

func (m *Store) Append(ctx context.Context, s *domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[s.ProbeID] = trim(append(m.samples[s.ProbeID], *s), m.limit)
	return nil
}

func (m *Store) History(ctx context.Context, id domain.ProbeID, limit int) ([]domain.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.samples[id], limit), nil
}

func (m *Store) RecordAlerts(ctx context.Context, cycleID string, alerts []domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range alerts {
		a.CycleID = cycleID
		m.alerts = append(m.alerts, a)
	}
	m.alerts = trim(m.alerts, m.limit)
	return nil
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.alerts, limit), nil
}

func (m *Store) Close() error { return nil }

func trim[T any](s []T, limit int) []T {
	if len(s) <= limit {
		return s
	}
	return append(s[:0:0], s[len(s)-limit:]...)
}

func newestFirst[T any](s []T, limit int) []T {
	n := len(s)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]T, 0, n)
	for i := len(s) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s[i])
	}
	return out
}
