// Package window keeps the recent failure history of every probe and
// decides which (probe, reason) pairs have failed often enough, recently
// enough, to be escalated.
package window

import (
	"sort"
	"sync"
	"time"
)

// Source is the probe side of a report: who failed and how that probe
// wants its failures counted.
type Source interface {
	ID() string
	MinFailures() int
	FailureWindow() time.Duration
}

// Escalation is one (probe, reason) pair whose failure count inside the
// probe's window reached its threshold.
type Escalation struct {
	Source Source
	Reason string
	Count  int
	Window time.Duration
}

type key struct {
	src    Source
	reason string
}

// Window is safe for concurrent use.
type Window struct {
	mu      sync.Mutex
	reports map[key][]time.Time
}

func New() *Window {
	return &Window{reports: make(map[key][]time.Time)}
}

// Report records one failure of src with the given reason at ts.
// Timestamps are kept as a multiset: two failures in the same second
// both count.
func (w *Window) Report(src Source, reason string, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	k := key{src: src, reason: reason}
	w.reports[k] = append(w.reports[k], ts)
}

// Evaluate drops failures older than each probe's own window, measured
// back from now, and returns the pairs that still have at least
// MinFailures of them. Pairs left without failures are forgotten.
// The result is sorted by probe ID, then reason.
func (w *Window) Evaluate(now time.Time) []Escalation {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Escalation
	for k, ts := range w.reports {
		win := k.src.FailureWindow()
		cutoff := now.Add(-win)
		kept := ts[:0]
		for _, t := range ts {
			if !t.Before(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(w.reports, k)
			continue
		}
		w.reports[k] = kept
		if len(kept) >= k.src.MinFailures() {
			out = append(out, Escalation{Source: k.src, Reason: k.reason, Count: len(kept), Window: win})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].Source.ID(), out[j].Source.ID(); a != b {
			return a < b
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Len reports how many (probe, reason) pairs currently hold failures.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.reports)
}
