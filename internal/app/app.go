package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/navsync/internal/clients/amfi"
	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/services/navsync"
	"github.com/bobmcallan/navsync/internal/storage"
)

// App holds the initialized clients, storage and the NAV service.
// It is the shared core used by cmd/navsync-server.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	FeedClient  interfaces.FeedClient
	RunLock     interfaces.RunLock
	NavService  interfaces.NavService
	StartupTime time.Time

	scheduler       *cron.Cron
	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath picks the config file: explicit path, NAVSYNC_CONFIG,
// navsync.toml next to the binary, then config/navsync.toml.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("NAVSYNC_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "navsync.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/navsync.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes storage, the run lock, the feed
// client and the NAV service. configPath may be empty.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(getBinaryDir(), config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runLock, err := storage.NewRunLock(ctx, logger, config, storageManager)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize run lock: %w", err)
	}

	a := newApp(config, logger, storageManager, newFeedClient(config, logger), runLock)
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// newApp wires the NAV service from already-built dependencies.
func newApp(config *common.Config, logger *common.Logger, sm interfaces.StorageManager, feed interfaces.FeedClient, lock interfaces.RunLock) *App {
	var opts []navsync.Option
	if lock != nil {
		opts = append(opts, navsync.WithRunLock(lock, config.Lock.GetTTL()))
	}

	return &App{
		Config:      config,
		Logger:      logger,
		Storage:     sm,
		FeedClient:  feed,
		RunLock:     lock,
		NavService:  navsync.NewService(feed, sm, logger, opts...),
		StartupTime: time.Now(),
	}
}

// newFeedClient builds the AMFI client from the [feed] section.
func newFeedClient(config *common.Config, logger *common.Logger) *amfi.Client {
	return amfi.NewClient(
		amfi.WithURL(config.Feed.URL),
		amfi.WithLogger(logger),
		amfi.WithTimeout(config.Feed.GetTimeout()),
		amfi.WithRateLimit(config.Feed.RateLimit),
		amfi.WithRetry(config.Feed.MaxAttempts, config.Feed.GetRetryBackoff()),
		amfi.WithMaxBodyBytes(int64(config.Feed.MaxBodyMB)<<20),
	)
}

// Close releases all resources held by the App.
// Shutdown order: cancel any scheduled run, stop scheduler, close lock,
// close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if closer, ok := a.RunLock.(io.Closer); ok {
		closer.Close()
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
