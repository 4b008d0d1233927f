package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/netmon/internal/config"
)

func newValidateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and list the checks it defines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mon, err := loadMonitor(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range mon.Probes() {
				fmt.Fprintf(out, "%s: %s (minFailures %d, window %s, %d notifiers)\n",
					p.ID(), p.Describe(), p.MinFailures(), p.FailureWindow(), len(p.Notifiers()))
			}
			fmt.Fprintf(out, "%s: %d checks, %d notifiers\n", cfg.ConfigFile, len(mon.Probes()), len(mon.Notifiers()))
			return nil
		},
	}
}
