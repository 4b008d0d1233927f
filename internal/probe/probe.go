package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/netmon/internal/notify"
)

// CheckResult is the outcome of one probe execution. An empty Reason
// means the check passed; anything else describes the failure.
type CheckResult struct {
	Reason string `json:"reason,omitempty"`
}

func (r CheckResult) OK() bool { return r.Reason == "" }

func Pass() CheckResult { return CheckResult{} }

func Fail(format string, args ...any) CheckResult {
	return CheckResult{Reason: fmt.Sprintf(format, args...)}
}

// Probe is one configured health check.
//
// Perform must turn every expected operational problem (timeout, refused
// connection, unexpected answer) into a failing CheckResult. It is never
// called twice concurrently for the same probe. Describe and Kind are
// stable and do not depend on the latest status.
type Probe interface {
	Perform(ctx context.Context) CheckResult
	Describe() string
	Kind() string

	// Provided by *Base.
	ID() string
	Subject() string
	MinFailures() int
	FailureWindow() time.Duration
	Notifiers() []notify.Notifier
	Attributes() map[string]any
	Results() map[string]map[string]any
	Status() Status
	SetStatus(r CheckResult, at time.Time)
}

// Status is the latest recorded outcome of a probe.
type Status struct {
	Result    CheckResult
	CheckedAt time.Time // zero until the first execution finished
}

// Settings are the options every probe kind understands.
type Settings struct {
	ID            string // optional stable ID
	Subject       string // optional alert subject
	MinFailures   int
	FailureWindow time.Duration
}

// Base carries the state shared by all probe kinds. Probes embed it.
type Base struct {
	id            string
	subject       string
	minFailures   int
	failureWindow time.Duration
	notifiers     []notify.Notifier
	attributes    map[string]any

	mu      sync.RWMutex
	status  Status
	results map[string]map[string]any
}

// NewBase copies notifiers: changes to the caller's slice after this call
// do not reach the probe.
func NewBase(s Settings, notifiers []notify.Notifier) *Base {
	if s.MinFailures < 1 {
		s.MinFailures = 1
	}
	if s.FailureWindow <= 0 {
		s.FailureWindow = DefaultFailureWindow
	}
	return &Base{
		id:            s.ID,
		subject:       s.Subject,
		minFailures:   s.MinFailures,
		failureWindow: s.FailureWindow,
		notifiers:     append([]notify.Notifier(nil), notifiers...),
		attributes:    make(map[string]any),
		results:       make(map[string]map[string]any),
	}
}

func (b *Base) ID() string                    { return b.id }
func (b *Base) Subject() string               { return b.subject }
func (b *Base) MinFailures() int              { return b.minFailures }
func (b *Base) FailureWindow() time.Duration  { return b.failureWindow }
func (b *Base) Notifiers() []notify.Notifier  { return append([]notify.Notifier(nil), b.notifiers...) }
func (b *Base) setAttribute(k string, v any)  { b.attributes[k] = v }
func (b *Base) Attributes() map[string]any    { return copyMap(b.attributes) }

func (b *Base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Base) SetStatus(r CheckResult, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = Status{Result: r, CheckedAt: at}
}

// resetResults drops the sub-results of the previous run. Every Perform
// that records results starts with it.
func (b *Base) resetResults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = make(map[string]map[string]any)
}

// SetResult stores one named structured sub-result of the latest run.
func (b *Base) SetResult(name string, kv map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[name] = kv
}

func (b *Base) Results() map[string]map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]map[string]any, len(b.results))
	for k, v := range b.results {
		out[k] = copyMap(v)
	}
	return out
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
