package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/numbot/core/config"
	"github.com/m3rciful/numbot/core/logger"
)

// App is a bootstrapped bot ready to run.
type App interface {
	// Run blocks until ctx is done and in-flight work has drained.
	Run(ctx context.Context) error
	Close() error
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (App, error)

	ShutdownLogger func() error
	// Signals override the shutdown signals; defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run loads configuration, bootstraps the app, and runs it until a shutdown signal.
func Run(opts Options) (err error) {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if serr := shutdownLogger(); serr != nil {
			log.Printf("logger shutdown error: %v", serr)
		}
	}()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("cmd: close: %w", cerr))
		}
	}()

	appLog := logger.Component("app")
	appLog.Info("app ready",
		slog.String("event", "ready"),
		slog.String("status", "ok"),
		slog.Duration("startup_duration", logger.Took(startedAt)),
	)

	runErr := application.Run(ctx)
	appLog.Info("shutting down...",
		slog.String("event", "shutdown"),
		slog.String("status", logger.Status(runErr)),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("cmd: run failed: %w", runErr)
	}
	return nil
}
