package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/netmon/internal/config"
	"github.com/hamed0406/netmon/internal/probe"
	"github.com/hamed0406/netmon/internal/scheduler"
)

func newCheckCommand(cfg *config.Config) *cobra.Command {
	var notifyToo bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every check once and print the outcome",
		Long:  "Runs one cycle and exits non-zero if any check failed. Notifiers are only used with --notify.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon, err := loadMonitor(cfg)
			if err != nil {
				return err
			}
			log := zap.NewNop()
			if cfg.Debug {
				if log, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			probes := mon.Probes()
			sched, err := scheduler.New(log, probes, scheduler.Options{
				Concurrency: cfg.MaxConcurrent,
				Dispatch:    scheduler.DispatcherConfig{Timeout: cfg.NotifyTimeout},
				Silent:      !notifyToo,
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			rep := sched.RunOnce(ctx)
			printReport(cmd.OutOrStdout(), probes, rep)
			if rep.Failed > 0 {
				return errChecksFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notifyToo, "notify", false, "send escalations to the configured notifiers")
	return cmd
}

func printReport(w io.Writer, probes []probe.Probe, rep scheduler.CycleReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tDETAIL")
	for _, p := range probes {
		st := p.Status()
		state, detail := "OK", p.Describe()
		if !st.Result.OK() {
			state, detail = "FAIL", st.Result.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID(), p.Kind(), state, detail)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d checks, %d failed, %d escalated (cycle %s, %s)\n",
		rep.Ran, rep.Failed, len(rep.Escalations), rep.ID, time.Now().Format(time.RFC3339))
}
