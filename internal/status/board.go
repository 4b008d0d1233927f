// Package status holds what the HTTP surface shows: the latest state of
// every probe and the escalations of the last finished cycle.
package status

import (
	"sync"
	"time"

	"github.com/hamed0406/netmon/internal/domain"
	"github.com/hamed0406/netmon/internal/probe"
)

// Board is written by the scheduler once per cycle and read by HTTP
// handlers.
type Board struct {
	mu      sync.RWMutex
	alerts  []domain.Alert
	cycleID string
	updated time.Time
}

func NewBoard() *Board { return &Board{} }

// Publish replaces the escalated set with the one of the cycle that just
// finished.
func (b *Board) Publish(cycleID string, alerts []domain.Alert, at time.Time) {
	cp := append([]domain.Alert(nil), alerts...)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = cp
	b.cycleID = cycleID
	b.updated = at
}

// Snapshot is the latest published escalated set.
type Snapshot struct {
	CycleID   string         `json:"cycle_id"`
	UpdatedAt *time.Time     `json:"updated_at"`
	Alerts    []domain.Alert `json:"alerts"`
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{CycleID: b.cycleID, Alerts: append([]domain.Alert{}, b.alerts...)}
	if !b.updated.IsZero() {
		t := b.updated
		s.UpdatedAt = &t
	}
	return s
}

// Rows reports the latest status of every probe, in registry order.
func Rows(probes []probe.Probe) []domain.StatusRow {
	out := make([]domain.StatusRow, 0, len(probes))
	for _, p := range probes {
		st := p.Status()
		row := domain.StatusRow{
			ProbeID:     domain.ProbeID(p.ID()),
			Kind:        p.Kind(),
			Description: p.Describe(),
			OK:          st.Result.OK(),
			Reason:      st.Result.Reason,
		}
		if !st.CheckedAt.IsZero() {
			t := st.CheckedAt
			row.CheckedAt = &t
		}
		out = append(out, row)
	}
	return out
}
