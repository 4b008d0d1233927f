package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/netmon/internal/notify"
	"github.com/hamed0406/netmon/internal/probe"
	"github.com/hamed0406/netmon/internal/window"
)

type DispatcherConfig struct {
	// Cooldown suppresses repeats for a pair that stays escalated. Zero
	// re-sends every cycle.
	Cooldown time.Duration
	// Timeout bounds each single notifier delivery.
	Timeout time.Duration
}

// Dispatcher hands escalations to the notifiers bound to each probe.
type Dispatcher struct {
	log *zap.Logger
	cfg DispatcherConfig
	m   *metrics
	now func() time.Time

	mu       sync.Mutex
	lastSent map[pairKey]time.Time
}

type pairKey struct {
	probe  string
	reason string
}

func NewDispatcher(log *zap.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	return &Dispatcher{
		log:      log,
		cfg:      cfg,
		now:      time.Now,
		lastSent: make(map[pairKey]time.Time),
	}
}

// Message builds the title and text sent for one escalation.
func Message(e window.Escalation) (title, text string) {
	p := e.Source.(probe.Probe)
	title = p.Subject()
	if title == "" {
		title = p.Kind() + " check failing"
	}
	text = fmt.Sprintf("%s\nReason: %s\n%d failures in last %s", p.Describe(), e.Reason, e.Count, e.Window)
	return title, text
}

// Dispatch delivers every escalation to its probe's notifiers, all in
// parallel, and returns once each delivery finished or timed out.
// Delivery errors are logged and counted, never returned. It reports the
// number of deliveries attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, escs []window.Escalation) int {
	now := d.now()
	due := d.due(escs, now)

	var g errgroup.Group
	attempts := 0
	for _, e := range due {
		title, text := Message(e)
		p := e.Source.(probe.Probe)
		for _, n := range p.Notifiers() {
			n := n
			attempts++
			g.Go(func() error {
				d.deliver(ctx, n, p.ID(), title, text)
				return nil
			})
		}
	}
	_ = g.Wait()
	return attempts
}

// due applies the cooldown and forgets pairs that are no longer escalated.
func (d *Dispatcher) due(escs []window.Escalation, now time.Time) []window.Escalation {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := make(map[pairKey]bool, len(escs))
	var out []window.Escalation
	for _, e := range escs {
		k := pairKey{probe: e.Source.ID(), reason: e.Reason}
		current[k] = true
		if last, ok := d.lastSent[k]; ok && d.cfg.Cooldown > 0 && now.Sub(last) < d.cfg.Cooldown {
			continue
		}
		d.lastSent[k] = now
		out = append(out, e)
	}
	for k := range d.lastSent {
		if !current[k] {
			delete(d.lastSent, k)
		}
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, n notify.Notifier, probeID, title, text string) {
	name := notify.NameOf(n)
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	if d.m != nil {
		d.m.notified.WithLabelValues(name).Inc()
	}
	if err := n.Send(ctx, title, text); err != nil {
		if d.m != nil {
			d.m.notifyErrors.WithLabelValues(name).Inc()
		}
		d.log.Warn("notify_error",
			zap.String("notifier", name),
			zap.String("probe_id", probeID),
			zap.String("title", title),
			zap.Error(err),
		)
		return
	}
	d.log.Info("notify_sent",
		zap.String("notifier", name),
		zap.String("probe_id", probeID),
		zap.String("title", title),
	)
}
