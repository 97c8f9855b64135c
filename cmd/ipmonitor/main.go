package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ipmonitor/internal/api"
	av1 "ipmonitor/internal/api/v1"
	"ipmonitor/internal/config"
	"ipmonitor/internal/dns"
	"ipmonitor/internal/history"
	"ipmonitor/internal/logger"
	"ipmonitor/internal/metrics"
	"ipmonitor/internal/monitor"
	"ipmonitor/internal/notify"
	"ipmonitor/internal/resolver"
	"ipmonitor/internal/state"
	"ipmonitor/internal/types"
	"ipmonitor/internal/version"

	"go.uber.org/zap"
)

// shutdownGrace is added to the worst-case cycle duration when stopping
const shutdownGrace = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version information")
	once := flag.Bool("once", false, "Run a single check and exit")
	flag.Parse()

	// Show version if requested
	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return 0
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	// Override debug setting if specified
	if *debug {
		cfg.Log.Level = "debug"
		cfg.API.Debug = true
	}

	// Initialize logger
	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting ipmonitor",
		zap.String("version", version.Version),
		zap.String("commit", version.GitCommit),
		zap.Bool("test_mode", cfg.TestMode))

	ctx := context.Background()
	app, err := build(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize", zap.Error(err))
		app.close()
		return 1
	}
	defer app.close()

	if *once {
		if err := app.monitor.RunOnce(ctx); err != nil {
			log.Warn("Check completed with errors", zap.Error(err))
		}
		return 0
	}

	if app.server != nil {
		if err := app.server.Start(); err != nil {
			log.Error("Failed to start status server", zap.Error(err))
			return 1
		}
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start monitor in background
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.monitor.Start()
	}()

	// Wait for signal or error
	select {
	case sig := <-sigChan:
		log.Info("Received signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			log.Error("Monitor error", zap.Error(err))
		}
	}

	// Graceful shutdown
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CycleTimeout()+shutdownGrace)
	defer cancel()

	if err := app.monitor.Stop(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			log.Error("Failed to stop status server", zap.Error(err))
		}
	}

	log.Info("Shutdown complete")
	return 0
}

// application holds the wired collaborators and their cleanup functions
type application struct {
	monitor *monitor.Monitor
	server  *api.Server
	history *history.Store
	closers []func() error
	logger  *zap.Logger
}

func (a *application) close() {
	// Release in reverse order of construction
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Failed to release resource", zap.Error(err))
		}
	}
	a.closers = nil
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	app := &application{logger: log}
	m := metrics.NewMetrics()

	sources, err := cfg.BuildSources(nil)
	if err != nil {
		return app, fmt.Errorf("failed to build ip sources: %w", err)
	}
	res, err := resolver.New(sources, m, log.Named("resolver"))
	if err != nil {
		return app, fmt.Errorf("failed to create resolver: %w", err)
	}

	store, err := newStateStore(ctx, cfg, app)
	if err != nil {
		return app, fmt.Errorf("failed to create state backend: %w", err)
	}

	updater, err := dns.New(cfg.DNS, log)
	if err != nil {
		return app, fmt.Errorf("failed to create dns updater: %w", err)
	}

	notifier := notify.NewManager(&cfg.Notify, updater.Records(), m, log)
	app.closers = append(app.closers, notifier.Stop)

	deps := monitor.Deps{
		Resolver: res,
		Store:    store,
		Notifier: notifier,
		DNS:      updater,
		Metrics:  m,
	}
	apiDeps := av1.Deps{Metrics: m}

	hist, err := history.Open(ctx, cfg.History, log)
	switch {
	case errors.Is(err, types.ErrHistoryDisabled):
		log.Debug("Change history disabled")
	case err != nil:
		// Cycles do not depend on history
		log.Warn("Change history unavailable, continuing without it", zap.Error(err))
	default:
		app.closers = append(app.closers, hist.Close)
		app.history = hist
		deps.History = hist
		apiDeps.History = hist
	}

	app.monitor, err = monitor.New(monitor.Config{
		CheckInterval: cfg.Interval(),
		TestMode:      cfg.TestMode,
	}, deps, log)
	if err != nil {
		return app, fmt.Errorf("failed to create monitor: %w", err)
	}

	if cfg.API.Enabled() {
		apiDeps.Status = app.monitor
		app.server = api.NewServer(cfg.API, apiDeps, log)
	}

	log.Info("Initialized components",
		zap.Strings("sources", res.Sources()),
		zap.String("state", store.Describe()),
		zap.String("dns_provider", updater.Provider()),
		zap.Strings("records", updater.Records()),
		zap.Any("notify_channels", notifier.Channels()),
		zap.Bool("history", deps.History != nil),
		zap.Bool("status_api", app.server != nil))

	return app, nil
}

func newStateStore(ctx context.Context, cfg *config.Config, app *application) (state.Store, error) {
	switch cfg.State.Backend {
	case config.BackendRedis:
		client, err := state.NewRedisClient(cfg.State.Redis)
		if err != nil {
			return nil, err
		}
		st := state.NewRedisStore(client, cfg.State.Redis.Key)
		app.closers = append(app.closers, st.Close)

		// An unreachable server reads as an absent state on the first cycle
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout(cfg.State.Redis))
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			app.logger.Warn("State backend unreachable, continuing",
				zap.String("addr", cfg.State.Redis.Addr),
				zap.Error(err))
		}
		return st, nil
	default:
		return state.NewFileStore(cfg.State.File), nil
	}
}

func dialTimeout(cfg state.RedisConfig) time.Duration {
	if cfg.DialTimeout > 0 {
		return cfg.DialTimeout
	}
	return state.DefaultDialTimeout
}
