package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/netmon/internal/config"
	"github.com/hamed0406/netmon/internal/httpapi"
	apimw "github.com/hamed0406/netmon/internal/httpapi/middleware"
	"github.com/hamed0406/netmon/internal/logging"
	"github.com/hamed0406/netmon/internal/scheduler"
	"github.com/hamed0406/netmon/internal/status"
)

func newRunCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run checks on a schedule and serve the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "status API listen address (ADDR)")
	cmd.Flags().DurationVar(&cfg.CheckInterval, "interval", cfg.CheckInterval, "time between check cycles (CHECK_INTERVAL)")
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	mon, err := loadMonitor(cfg)
	if err != nil {
		logger.Error("config_error", zap.String("file", cfg.ConfigFile), zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	board := status.NewBoard()
	probes := mon.Probes()

	sched, err := scheduler.New(logger, probes, scheduler.Options{
		Interval:    cfg.CheckInterval,
		Concurrency: cfg.MaxConcurrent,
		Dispatch: scheduler.DispatcherConfig{
			Cooldown: cfg.AlertCooldown,
			Timeout:  cfg.NotifyTimeout,
		},
		Samples:  store,
		Alerts:   store,
		Board:    board,
		Registry: reg,
	})
	if err != nil {
		return err
	}

	api := httpapi.NewServer(logger, probes, board)
	api.Samples = store
	api.Alerts = store
	api.Trigger = sched.RunOnce
	api.Gatherer = reg
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("netmon_start",
		zap.String("config", cfg.ConfigFile),
		zap.Int("checks", len(probes)),
		zap.Int("notifiers", len(mon.Notifiers())),
		zap.String("addr", cfg.Addr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("netmon_stop", zap.Error(err))
	return err
}
