package repo

import (
	"context"

	"github.com/hamed0406/netmon/internal/domain"
)

// Ports implemented by the memory, sqlite and postgres adapters.
type SampleSink interface {
	Append(ctx context.Context, s *domain.Sample) error
}

type SampleStore interface {
	SampleSink
	// History returns the newest samples of one probe first.
	History(ctx context.Context, id domain.ProbeID, limit int) ([]domain.Sample, error)
}
