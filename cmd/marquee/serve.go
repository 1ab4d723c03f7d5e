package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/marquee/internal/admin"
	"github.com/danmuck/marquee/internal/config"
	"github.com/danmuck/marquee/internal/logging"
	"github.com/danmuck/marquee/internal/observability"
	"github.com/danmuck/marquee/internal/protocol"
	"github.com/danmuck/marquee/internal/protocol/value"
	"github.com/danmuck/marquee/internal/server"
	"github.com/danmuck/marquee/internal/store"
	"github.com/danmuck/marquee/internal/supervise"
	"github.com/danmuck/marquee/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the protocol server",
		Long: `Run the protocol server until signalled.

The first SIGINT/SIGTERM (or POST /shutdown) starts an orderly shutdown and
the process exits with status 0 once the grace period elapses, finished or
not. A second signal cancels that forced exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (TOML)")
	return cmd
}

func setupLogging(cfg config.Config) (func(), error) {
	lc := logging.DefaultConfig(logging.ProfileRuntime)
	lc.Level = cfg.LogLevel
	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		lc.Output = f
		lc.Console = false
		closeFn = func() { _ = f.Close() }
	}
	logging.ApplyEnvOverrides(&lc)
	logging.Setup(lc)
	return closeFn, nil
}

// serveOptions are the process hooks runServe uses; tests replace them.
type serveOptions struct {
	signals      <-chan os.Signal
	exit         func(int)
	setupLogs    bool
	coordinator  []supervise.CoordinatorOption
	monitor      []supervise.MonitorOption
	monitorHost  func(*server.Service) supervise.Host
	onStarted    func(*server.Service)
	flushTimeout time.Duration
}

type serveOption func(*serveOptions)

func withSignals(ch <-chan os.Signal) serveOption {
	return func(o *serveOptions) { o.signals = ch }
}

func withExit(exit func(int)) serveOption {
	return func(o *serveOptions) { o.exit = exit }
}

func withoutLogSetup() serveOption {
	return func(o *serveOptions) { o.setupLogs = false }
}

func withMonitorOptions(opts ...supervise.MonitorOption) serveOption {
	return func(o *serveOptions) { o.monitor = append(o.monitor, opts...) }
}

func withMonitorHost(fn func(*server.Service) supervise.Host) serveOption {
	return func(o *serveOptions) { o.monitorHost = fn }
}

func withStarted(fn func(*server.Service)) serveOption {
	return func(o *serveOptions) { o.onStarted = fn }
}

func runServe(ctx context.Context, cfg config.Config, opts ...serveOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	o := serveOptions{
		exit:         os.Exit,
		setupLogs:    true,
		flushTimeout: time.Second,
		monitorHost:  func(svc *server.Service) supervise.Host { return svc },
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.setupLogs {
		closeLog, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		defer closeLog()
	}
	observability.RegisterMetrics()

	st, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}

	codec := protocol.Codec{Limits: cfg.FrameLimits(), Values: value.DefaultDecoder}
	svc := server.New(server.Config{
		Name:        "marquee",
		ListenAddr:  cfg.ListenAddr,
		ReadTimeout: cfg.ReadTimeout,
		Codec:       codec,
	}, st)

	ln, err := svc.Listen()
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	var adminLn net.Listener
	if cfg.AdminAddr != "" {
		adminLn, err = net.Listen("tcp", cfg.AdminAddr)
		if err != nil {
			_ = ln.Close()
			_ = st.Close()
			return fmt.Errorf("listen admin %s: %w", cfg.AdminAddr, err)
		}
	}

	// Cancelling interruptCtx cancels only the forced exit.
	interruptCtx, interrupt := context.WithCancel(context.Background())
	defer interrupt()
	coordOpts := append([]supervise.CoordinatorOption{
		supervise.WithExit(logging.ExitAfterFlush(o.exit, o.flushTimeout)),
	}, o.coordinator...)
	coord := supervise.NewCoordinator(svc, cfg.GracePeriod, coordOpts...)
	activate := func() { coord.Activate(interruptCtx) }

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	go func() {
		select {
		case <-coord.ShutdownDone():
			stopRun()
		case <-runCtx.Done():
		}
	}()

	sigs := o.signals
	if sigs == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigs = ch
	}
	go watchSignals(sigs, cfg.GracePeriod, activate, interrupt, interruptCtx.Done())

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return svc.Serve(gctx, ln)
	})
	if adminLn != nil {
		api := admin.New(admin.Config{
			Name:        "marquee",
			Version:     version,
			CORSOrigins: cfg.AdminCORS,
			Token:       cfg.AdminToken,
		}, svc,
			admin.WithEvents(st),
			admin.WithShutdown(activate),
			admin.WithUpgrader(transport.NewUpgrader(codec)),
		)
		g.Go(func() error {
			return api.Serve(gctx, adminLn)
		})
	}
	g.Go(func() error {
		monitor := supervise.NewMonitor(o.monitorHost(svc), cfg.Monitor, o.monitor...)
		err := monitor.Run(gctx)
		if err != nil && !errors.Is(err, supervise.ErrInterruptedWait) {
			log.Error().Err(err).Msg("marquee.serve liveness monitor failed, shutting down")
			activate()
		}
		return nil
	})

	log.Info().
		Str("listen", ln.Addr().String()).
		Str("admin", cfg.AdminAddr).
		Str("database", cfg.DatabasePath).
		Msg("marquee.serve started")
	if o.onStarted != nil {
		o.onStarted(svc)
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("marquee.serve stopped with error")
		activate()
		<-coord.Done()
		return err
	}

	activate()
	<-coord.Done()
	if err := coord.Err(); err != nil {
		log.Info().Err(err).Msg("marquee.serve exiting without forced exit")
	}
	return nil
}

// watchSignals activates shutdown on the first signal and cancels the forced
// exit on the second.
func watchSignals(sigs <-chan os.Signal, grace time.Duration, activate, interrupt func(), done <-chan struct{}) {
	first := true
	for {
		select {
		case sig := <-sigs:
			if first {
				first = false
				log.Warn().Str("signal", sig.String()).Dur("grace", grace).Msg("marquee.serve shutdown requested")
				activate()
				continue
			}
			log.Warn().Str("signal", sig.String()).Msg("marquee.serve forced exit cancelled")
			interrupt()
			return
		case <-done:
			return
		}
	}
}
