package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "netmon"

type metrics struct {
	checks       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	skipped      prometheus.Counter
	cycles       prometheus.Counter
	escalated    prometheus.Gauge
	notified     *prometheus.CounterVec
	notifyErrors *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Probe executions by kind and outcome",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Time spent in one probe execution",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_skipped_total",
			Help:      "Probes not started because their previous run was still in flight",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Finished scheduler cycles",
		}),
		escalated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escalations",
			Help:      "Escalated (probe, reason) pairs after the last cycle",
		}),
		notified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handed to a notifier",
		}, []string{"notifier"}),
		notifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "Notifications a notifier failed to deliver",
		}, []string{"notifier"}),
	}
	err := multierr.Combine(
		reg.Register(m.checks),
		reg.Register(m.duration),
		reg.Register(m.skipped),
		reg.Register(m.cycles),
		reg.Register(m.escalated),
		reg.Register(m.notified),
		reg.Register(m.notifyErrors),
	)
	return m, err
}
