package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"

	"connectord/internal/catalog"
	"connectord/internal/config"
	"connectord/internal/events"
	"connectord/internal/lifecycle"
	"connectord/internal/server"
	"connectord/internal/store"
	"connectord/internal/supervisor"
	"connectord/pkg/logging"
)

// Config carries the command-line level settings for the daemon.
type Config struct {
	// Debug enables verbose logging.
	Debug bool

	// Silent suppresses all log output. Used by tests and scripting.
	Silent bool

	// ConfigPath overrides the default configuration directory.
	ConfigPath string
}

// Application bootstraps and runs the connector daemon: it wires the
// catalog, instance store, process supervisor, lifecycle manager and HTTP
// server, then supervises them until shutdown.
type Application struct {
	cfg     config.Config
	catalog *catalog.Catalog
	manager *lifecycle.Manager
	server  *server.Server

	// shutdownRequested is closed when a shutdown arrives over the API
	// rather than as a signal.
	shutdownRequested chan struct{}
}

// NewApplication performs the bootstrap sequence: logging, configuration,
// storage, and component wiring. No processes are spawned yet; Run does
// the startup work that has side effects.
func NewApplication(cliCfg *Config) (*Application, error) {
	logLevel := logging.LevelInfo
	if cliCfg.Debug {
		logLevel = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	if cliCfg.Silent {
		logOutput = io.Discard
	}
	logging.Init(logLevel, logOutput)

	configPath := cliCfg.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration from %s", configPath)
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	st, err := store.NewFileStore(cfg.StateDir)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to open instance store at %s", cfg.StateDir)
		return nil, fmt.Errorf("failed to open instance store at %s: %w", cfg.StateDir, err)
	}

	cat := catalog.New(cfg.CatalogDir)
	sup := supervisor.New(cfg.LogDir)
	bus := events.NewBus()

	manager := lifecycle.NewManager(lifecycle.Options{
		HealthInterval:      cfg.Lifecycle.HealthInterval,
		HeartbeatStaleness:  cfg.Lifecycle.HeartbeatStaleness,
		GracefulStopTimeout: cfg.Lifecycle.GracefulStopTimeout,
		ShutdownDeadline:    cfg.Lifecycle.ShutdownDeadline,
		DaemonBaseURL:       cfg.BaseURL,
	}, cat, st, sup, bus)

	app := &Application{
		cfg:               cfg,
		catalog:           cat,
		manager:           manager,
		shutdownRequested: make(chan struct{}),
	}
	app.server = server.New(server.Options{
		EventBufferSize: cfg.EventBufferSize,
	}, manager, bus, app.requestShutdown)
	return app, nil
}

func (a *Application) requestShutdown() {
	select {
	case <-a.shutdownRequested:
	default:
		close(a.shutdownRequested)
	}
}

// Run starts the daemon and blocks until the context is cancelled or a
// shutdown is requested over the API. On the way out it stops every
// instance, bounded by the shutdown deadline.
func (a *Application) Run(ctx context.Context) error {
	types := a.catalog.Discover()
	logging.Info("Bootstrap", "Discovered %d connector types in %s", len(types), a.cfg.CatalogDir)
	if err := a.catalog.Watch(ctx); err != nil {
		logging.Warn("Bootstrap", "Catalog watching disabled: %v", err)
	}

	// Pids persisted by a previous daemon run are stale until proven
	// alive. Reconcile before anything else can touch the instances.
	if err := a.manager.Reconcile(ctx); err != nil {
		return fmt.Errorf("instance reconciliation failed: %w", err)
	}
	a.manager.AutoStart(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start(a.cfg.ListenAddr)
	}()

	// Best effort; a no-op outside systemd units.
	daemon.SdNotify(false, daemon.SdNotifyReady)

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info("Bootstrap", "Shutdown signal received")
	case <-a.shutdownRequested:
		logging.Info("Bootstrap", "Shutdown requested over API")
	case err := <-serverErr:
		logging.Error("Bootstrap", err, "HTTP server failed")
		runErr = err
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	a.shutdown()
	return runErr
}

// shutdown stops all instances and drains the HTTP server. Runs on a
// fresh context: the run context is typically already cancelled.
func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Lifecycle.ShutdownDeadline)
	defer cancel()

	if err := a.manager.ShutdownAll(ctx); err != nil {
		logging.Error("Bootstrap", err, "Failed to stop all instances")
	}
	a.manager.Close()

	if err := a.server.Shutdown(ctx); err != nil {
		logging.Error("Bootstrap", err, "HTTP server shutdown failed")
	}
	logging.Info("Bootstrap", "Daemon stopped")
}
