package domain

import "time"

type ProbeID string

// Sample is one finished probe execution as persisted by the result sinks.
type Sample struct {
	ProbeID     ProbeID                   `json:"probe_id"`
	Kind        string                    `json:"kind"`
	Description string                    `json:"description"`
	OK          bool                      `json:"ok"`
	Reason      string                    `json:"reason,omitempty"`
	Attributes  map[string]any            `json:"attributes,omitempty"`
	Results     map[string]map[string]any `json:"results,omitempty"`
	DurationMS  float64                   `json:"duration_ms"`
	CycleID     string                    `json:"cycle_id"`
	CheckedAt   time.Time                 `json:"checked_at"`
}

// Alert is one escalated (probe, reason) pair of a scheduler cycle.
type Alert struct {
	ProbeID     ProbeID   `json:"probe_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Subject     string    `json:"subject"`
	Reason      string    `json:"reason"`
	Count       int       `json:"count"`
	WindowSec   int       `json:"window_seconds"`
	CycleID     string    `json:"cycle_id,omitempty"`
	RaisedAt    time.Time `json:"raised_at"`
}

// StatusRow is the latest known state of one probe.
type StatusRow struct {
	ProbeID     ProbeID    `json:"id"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	OK          bool       `json:"ok"`
	Reason      string     `json:"reason,omitempty"`
	CheckedAt   *time.Time `json:"checked_at"` // nil until the first run finished
}
