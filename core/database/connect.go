package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	coreconfig "github.com/m3rciful/numbot/core/config"
	"github.com/m3rciful/numbot/core/logger"
)

const (
	// DriverSQLite is the database/sql driver name registered by modernc.org/sqlite.
	DriverSQLite = "sqlite"
	// DriverPostgres is the database/sql driver name registered by lib/pq.
	DriverPostgres = "postgres"
)

// Target describes a SQL database to connect to.
type Target struct {
	Driver         string
	DSN            string
	MaxConnections int
	// Label is a password-free description used in logs.
	Label string
}

// SQLiteTarget builds a target for a sqlite file with WAL and a busy timeout.
// Sqlite is pinned to a single connection so writers never contend for the file lock.
func SQLiteTarget(path string) Target {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return Target{
		Driver:         DriverSQLite,
		DSN:            "file:" + path + "?" + q.Encode(),
		MaxConnections: 1,
		Label:          path,
	}
}

// PostgresTarget builds a target from postgres settings.
func PostgresTarget(cfg coreconfig.PostgresConfig) Target {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
	return Target{
		Driver:         DriverPostgres,
		DSN:            dsn,
		MaxConnections: cfg.MaxConnections,
		Label:          fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Name),
	}
}

// Connect opens the database, configures the pool, and verifies connectivity.
func Connect(t Target) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, t.Driver, t.DSN)
	took := time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", t.Driver),
			slog.String("db", t.Label),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if t.MaxConnections > 0 {
		db.SetMaxOpenConns(t.MaxConnections)
		db.SetMaxIdleConns(t.MaxConnections)
	}
	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", t.Driver),
		slog.String("db", t.Label),
		slog.Int("pool_open", t.MaxConnections),
		slog.Duration("duration", took),
	)
	return db, nil
}

// WaitFor pings the target until it answers or timeout is reached.
func WaitFor(t Target, timeout time.Duration) error {
	start := time.Now()
	var lastErr error
	for {
		db, err := sql.Open(t.Driver, t.DSN)
		if err == nil {
			err = db.Ping()
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		if time.Since(start) > timeout {
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		}
		time.Sleep(2 * time.Second)
	}
}
