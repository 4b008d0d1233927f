package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/netmon/internal/domain"
	"github.com/hamed0406/netmon/internal/probe"
	"github.com/hamed0406/netmon/internal/repo"
	"github.com/hamed0406/netmon/internal/window"
)

// Publisher receives the escalated set of every finished cycle.
type Publisher interface {
	Publish(cycleID string, alerts []domain.Alert, at time.Time)
}

type Options struct {
	Interval    time.Duration
	Concurrency int
	Dispatch    DispatcherConfig
	// Silent evaluates the window but never calls notifiers.
	Silent bool

	// Optional outputs.
	Samples  repo.SampleSink
	Alerts   repo.AlertSink
	Board    Publisher
	Registry prometheus.Registerer
}

// CycleReport summarizes one RunOnce.
type CycleReport struct {
	ID          string
	Ran         int
	Skipped     int
	Failed      int
	Escalations []window.Escalation
	Notified    int
}

type entry struct {
	probe.Probe
	running atomic.Bool
}

// Scheduler runs every probe once per cycle, feeds failures into the
// failure window and hands what escalated to the dispatcher.
type Scheduler struct {
	log        *zap.Logger
	entries    []*entry
	window     *window.Window
	dispatcher *Dispatcher
	opts       Options
	m          *metrics
	now        func() time.Time
}

func New(log *zap.Logger, probes []probe.Probe, opts Options) (*Scheduler, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		log:        log,
		window:     window.New(),
		dispatcher: NewDispatcher(log, opts.Dispatch),
		opts:       opts,
		m:          m,
		now:        time.Now,
	}
	s.dispatcher.m = m
	for _, p := range probes {
		s.entries = append(s.entries, &entry{Probe: p})
	}
	return s, nil
}

// Run does an immediate pass, then one cycle per interval until ctx is
// cancelled. A cycle that is still busy when the next one is due makes
// the scheduler skip that one.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := cronLogger{s.log.Sugar()}
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		s.RunOnce(ctx)
	}))

	c := cron.New(cron.WithLogger(logger))
	c.Schedule(cron.Every(s.opts.Interval), job)

	job.Run()
	c.Start()
	s.log.Info("scheduler_started",
		zap.Int("probes", len(s.entries)),
		zap.Duration("interval", s.opts.Interval),
		zap.Int("concurrency", s.opts.Concurrency),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler_stopped")
	return ctx.Err()
}

// RunOnce executes one cycle and waits for it to finish. Probes whose
// previous execution has not returned yet are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) CycleReport {
	cycleID := uuid.NewString()
	rep := CycleReport{ID: cycleID}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	var failed atomic.Int32
	for _, e := range s.entries {
		e := e
		if !e.running.CompareAndSwap(false, true) {
			rep.Skipped++
			s.m.skipped.Inc()
			s.log.Warn("check_still_running", zap.String("probe_id", e.ID()), zap.String("kind", e.Kind()))
			continue
		}
		rep.Ran++
		g.Go(func() error {
			defer e.running.Store(false)
			if !s.execute(ctx, cycleID, e.Probe) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	rep.Failed = int(failed.Load())

	now := s.now()
	rep.Escalations = s.window.Evaluate(now)
	alerts := Alerts(rep.Escalations, now)
	s.m.escalated.Set(float64(len(alerts)))

	if s.opts.Board != nil {
		s.opts.Board.Publish(rep.ID, alerts, now)
	}
	if s.opts.Alerts != nil {
		if err := s.opts.Alerts.RecordAlerts(ctx, rep.ID, alerts); err != nil {
			s.log.Warn("alerts_record_error", zap.String("cycle", rep.ID), zap.Error(err))
		}
	}
	if !s.opts.Silent {
		rep.Notified = s.dispatcher.Dispatch(ctx, rep.Escalations)
	}

	s.m.cycles.Inc()
	s.log.Info("scheduler_cycle_done",
		zap.String("cycle", rep.ID),
		zap.Int("ran", rep.Ran),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Int("escalations", len(rep.Escalations)),
		zap.Int("notified", rep.Notified),
		zap.Duration("took", time.Since(start)),
	)
	return rep
}

// execute runs one probe and records its outcome. It reports whether the
// probe passed.
func (s *Scheduler) execute(ctx context.Context, cycleID string, p probe.Probe) bool {
	start := time.Now()
	res := p.Perform(ctx)
	took := time.Since(start)
	now := s.now()

	p.SetStatus(res, now)
	outcome := "ok"
	if !res.OK() {
		outcome = "fail"
		s.window.Report(p, res.Reason, now)
	}
	s.m.checks.WithLabelValues(p.Kind(), outcome).Inc()
	s.m.duration.WithLabelValues(p.Kind()).Observe(took.Seconds())

	s.log.Debug("check_done",
		zap.String("probe_id", p.ID()),
		zap.String("kind", p.Kind()),
		zap.Bool("ok", res.OK()),
		zap.String("reason", res.Reason),
		zap.Duration("took", took),
	)

	if s.opts.Samples != nil {
		sm := &domain.Sample{
			ProbeID:     domain.ProbeID(p.ID()),
			Kind:        p.Kind(),
			Description: p.Describe(),
			OK:          res.OK(),
			Reason:      res.Reason,
			Attributes:  p.Attributes(),
			Results:     p.Results(),
			DurationMS:  float64(took.Microseconds()) / 1000,
			CycleID:     cycleID,
			CheckedAt:   now.UTC(),
		}
		if err := s.opts.Samples.Append(ctx, sm); err != nil {
			s.log.Warn("sample_append_error", zap.String("probe_id", p.ID()), zap.Error(err))
		}
	}
	return res.OK()
}

// Alerts converts escalations into the records handed to sinks.
func Alerts(escs []window.Escalation, at time.Time) []domain.Alert {
	out := make([]domain.Alert, 0, len(escs))
	for _, e := range escs {
		p := e.Source.(probe.Probe)
		title, _ := Message(e)
		out = append(out, domain.Alert{
			ProbeID:     domain.ProbeID(p.ID()),
			Kind:        p.Kind(),
			Description: p.Describe(),
			Subject:     title,
			Reason:      e.Reason,
			Count:       e.Count,
			WindowSec:   int(e.Window / time.Second),
			RaisedAt:    at.UTC(),
		})
	}
	return out
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron_"+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron_"+msg, append(keysAndValues, "error", err)...)
}
