package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hamed0406/netmon/internal/config"
)

// errChecksFailed makes `netmon check` exit non-zero without printing a
// second error line.
var errChecksFailed = errors.New("one or more checks failed")

func main() {
	cfg := config.FromEnv()
	root := newRootCmd(&cfg)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "netmon",
		Short:         "Network health monitor",
		Long:          "netmon runs DNS, TCP, ICMP and HTTPS checks on a schedule and alerts when failures pile up.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfg.ConfigFile, "config", "c", cfg.ConfigFile, "YAML file with notifiers and checks (CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "log at debug level and to stderr (DEBUG)")

	root.AddCommand(newRunCommand(cfg))
	root.AddCommand(newCheckCommand(cfg))
	root.AddCommand(newValidateCommand(cfg))
	return root
}
