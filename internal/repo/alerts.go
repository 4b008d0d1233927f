package repo

import (
	"context"

	"github.com/hamed0406/netmon/internal/domain"
)

// AlertSink receives the escalations of every scheduler cycle. An empty
// slice is still delivered so stores can tell quiet cycles apart from
// missing ones if they want to.
type AlertSink interface {
	RecordAlerts(ctx context.Context, cycleID string, alerts []domain.Alert) error
}

type AlertStore interface {
	AlertSink
	// Recent returns the newest alerts first.
	Recent(ctx context.Context, limit int) ([]domain.Alert, error)
}

// Store is what a full persistence backend provides.
type Store interface {
	SampleStore
	AlertStore
	Close() error
}
