package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coreconfig "github.com/m3rciful/numbot/core/config"
	coredatabase "github.com/m3rciful/numbot/core/database"
	"github.com/m3rciful/numbot/core/dialogue"
	"github.com/m3rciful/numbot/core/logger"
	"github.com/m3rciful/numbot/core/metrics"
	"github.com/m3rciful/numbot/core/storage"
)

const (
	pingTimeout     = 5 * time.Second
	postgresWaitFor = 30 * time.Second
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config
	Schema *dialogue.Schema
	// Registerer receives the metrics collectors; nil uses a private registry.
	Registerer prometheus.Registerer

	LoggerInit  func(*coreconfig.Config) error
	OpenBackend func(ctx context.Context, cfg coreconfig.StorageConfig) (storage.Backend, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Backend storage.Backend
	Store   dialogue.Store
	Metrics *metrics.Recorder
}

// Close releases the storage backend.
func (r *Result) Close() error {
	if r == nil || r.Backend == nil {
		return nil
	}
	return r.Backend.Close()
}

// Run initializes the logger, opens and verifies the dialogue store, and
// prepares metrics. Any storage failure is fatal.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	if opts.Schema == nil {
		return nil, fmt.Errorf("bootstrap: nil dialogue schema provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	open := opts.OpenBackend
	if open == nil {
		open = OpenBackend
	}
	scfg := opts.Config.Storage
	backend, err := open(ctx, scfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: storage %s initialization failed: %w", scfg.Driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := backend.Ping(pingCtx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("bootstrap: storage %s unreachable: %w", scfg.Driver, err)
	}

	rec := metrics.NewRecorder(opts.Registerer)
	store := dialogue.NewStore(backend, opts.Schema, dialogue.StoreOptions{
		OpTimeout: time.Duration(scfg.OpTimeoutMS) * time.Millisecond,
		Observer:  rec,
	})
	logger.Info(ctx, "store", "store.open",
		slog.String("status", "ok"),
		slog.String("store_driver", scfg.Driver),
	)
	return &Result{Backend: backend, Store: store, Metrics: rec}, nil
}

// OpenBackend opens the storage backend selected by cfg.Driver. SQL drivers are
// migrated before use.
func OpenBackend(_ context.Context, cfg coreconfig.StorageConfig) (storage.Backend, error) {
	switch cfg.Driver {
	case coreconfig.DriverMemory:
		logger.Warn(logger.Background(), "store", "store.volatile",
			slog.String("status", "ok"),
			slog.String("store_driver", cfg.Driver),
			slog.String("reason", "dialogue state is lost on restart"),
		)
		return storage.NewMemory(), nil
	case coreconfig.DriverSQLite:
		return openSQL(coredatabase.SQLiteTarget(cfg.Path), 0)
	case coreconfig.DriverPostgres:
		return openSQL(coredatabase.PostgresTarget(cfg.Postgres), postgresWaitFor)
	case coreconfig.DriverRedis:
		return storage.OpenRedis(cfg.Redis.URL, cfg.Redis.KeyPrefix)
	}
	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}

func openSQL(t coredatabase.Target, wait time.Duration) (storage.Backend, error) {
	if wait > 0 {
		if err := coredatabase.WaitFor(t, wait); err != nil {
			return nil, err
		}
	}
	if err := coredatabase.RunMigrations(t); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	db, err := coredatabase.Connect(t)
	if err != nil {
		return nil, err
	}
	return storage.NewSQL(db), nil
}

