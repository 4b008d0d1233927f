// Package app owns what a running monitor is made of: the notifiers and
// the ordered list of probes bound to them.
package app

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/hamed0406/netmon/internal/config"
	"github.com/hamed0406/netmon/internal/notify"
	"github.com/hamed0406/netmon/internal/probe"
)

// Context is filled once at startup and read-only afterwards; it is not
// safe for concurrent mutation.
type Context struct {
	notifiers []notify.Notifier
	probes    []probe.Probe
	ids       map[string]bool
}

func New() *Context {
	return &Context{ids: make(map[string]bool)}
}

// AddNotifier binds n to every probe added from now on. Probes that
// already exist keep the notifiers they were built with.
func (c *Context) AddNotifier(n notify.Notifier) {
	c.notifiers = append(c.notifiers, n)
}

// AddProbe builds a probe of the given kind and registers it.
func (c *Context) AddProbe(kind string, rec config.Record) (probe.Probe, error) {
	p, err := probe.New(kind, rec, c.notifiers)
	if err != nil {
		return nil, err
	}
	if c.ids[p.ID()] {
		return nil, &config.Error{Kind: kind, Key: "id", Msg: fmt.Sprintf("duplicate check id %q", p.ID())}
	}
	c.ids[p.ID()] = true
	c.probes = append(c.probes, p)
	return p, nil
}

func (c *Context) Probes() []probe.Probe {
	return append([]probe.Probe(nil), c.probes...)
}

func (c *Context) Notifiers() []notify.Notifier {
	return append([]notify.Notifier(nil), c.notifiers...)
}

// Build assembles a Context from the configuration file. A Slack webhook
// from the environment comes first, then the file's notifiers, so every
// check is bound to all of them. All configuration problems are reported
// together.
func Build(f *config.File, env config.Config) (*Context, error) {
	c := New()
	if env.SlackWebhook != "" {
		c.AddNotifier(notify.NewSlack(env.SlackWebhook))
	}

	var errs error
	for i, rec := range f.Notifiers {
		n, err := notify.FromRecord(rec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notifiers[%d]: %w", i, err))
			continue
		}
		c.AddNotifier(n)
	}
	for i, rec := range f.Checks {
		kind, _ := rec["kind"].(string)
		if _, err := c.AddProbe(kind, rec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("checks[%d]: %w", i, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return c, nil
}
