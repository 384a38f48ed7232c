// Package main is the entry point for the crewdeck dashboard server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tcmartin/crewdeck/pkg/api"
	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/config"
	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/logging"
	"github.com/tcmartin/crewdeck/pkg/runtime"
	"github.com/tcmartin/crewdeck/pkg/storage"
	"github.com/tcmartin/crewdeck/pkg/widgets"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "crewdeck"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := config.Load(findConfig())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, closeLog, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("application failed", "error", err)
			os.Exit(1)
		}
	case <-stop:
		logger.Info("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			logger.Error("error during shutdown", "error", err)
			os.Exit(1)
		}
	}
}

// findConfig returns the --config path, or the first config file found in the
// standard locations. An empty result means defaults and environment only.
func findConfig() string {
	if *configPath != "" {
		return *configPath
	}

	locations := []string{
		"./crewdeck.yaml",
		"./crewdeck.json",
		"./configs/crewdeck.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(home, ".crewdeck", "config.yaml"),
			filepath.Join(home, ".crewdeck", "config.json"),
		)
	}
	locations = append(locations, "/etc/crewdeck/config.yaml")

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// App represents the crewdeck application
type App struct {
	config          *config.Config
	server          *api.Server
	storageProvider storage.StorageProvider
	redis           redis.UniversalClient
	logger          *slog.Logger
}

// NewApp wires storage, the widget layout, the flow runtime and the API server
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	providerConfig, err := cfg.ProviderConfig()
	if err != nil {
		return nil, err
	}

	logger.Info("initializing storage provider", "type", providerConfig.Type)
	storageProvider, err := storage.NewProvider(providerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}
	if err := storageProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	store, err := storageProvider.GetPreferenceStore(cfg.Storage.Namespace)
	if err != nil {
		_ = storageProvider.Close()
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	prefs := widgets.NewPreferences(store, widgets.WithLogger(logger))
	if err := prefs.Load(); err != nil {
		_ = storageProvider.Close()
		return nil, fmt.Errorf("failed to load widget preferences: %w", err)
	}

	backend, err := client.New(cfg.API.BaseURL,
		client.WithToken(cfg.API.Token),
		client.WithTimeout(cfg.API.Timeout.Std()),
		client.WithLogger(logger))
	if err != nil {
		_ = storageProvider.Close()
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if client.TokenExpired(cfg.API.Token, 0) {
		logger.Warn("configured api token is expired, callers must send their own")
	}

	var rdb redis.UniversalClient
	if events.Mode(cfg.Monitor.Mode) == events.ModeRedis {
		rdb = runtime.NewRedisClient(cfg.Redis)
	}

	relay := api.NewRelay(logger)
	rtCfg := runtime.ConfigFrom(cfg.Monitor, rdb, logger)
	rtCfg.Observer = relay
	if cfg.API.Token != "" {
		rtCfg.RelayHeaders = map[string]string{"Authorization": "Bearer " + cfg.API.Token}
	}
	flowRuntime := runtime.NewFlowRuntime(backend, rtCfg)

	server := api.NewServer(cfg, backend, flowRuntime, prefs,
		api.WithLogger(logger),
		api.WithRelay(relay))

	return &App{
		config:          cfg,
		server:          server,
		storageProvider: storageProvider,
		redis:           rdb,
		logger:          logger,
	}, nil
}

// Start starts the application
func (a *App) Start() error {
	a.logger.Info("starting", "app", AppName, "version", AppVersion, "backend", a.config.API.BaseURL, "monitor_mode", a.config.Monitor.Mode)
	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if err := a.server.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if err := a.storageProvider.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	return errors.Join(errs...)
}
