package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/smartassist/viberbot/config"
	"github.com/smartassist/viberbot/logger"
	"log/slog"
)

// Connect opens the database connection for the configured driver, configures
// the pool, and verifies connectivity.
func Connect(cfg config.StorageConfig) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		db   *sqlx.DB
		err  error
		took time.Duration
	)
	start := time.Now()
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = sqlx.ConnectContext(ctx, "postgres", postgresDSN(cfg))
	case config.DriverSQLite:
		if mkErr := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create database directory: %w", mkErr)
		}
		db, err = sqlx.ConnectContext(ctx, "sqlite", sqliteDSN(cfg.Path))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	took = time.Since(start)
	if err != nil {
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", cfg.Driver),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	switch cfg.Driver {
	case config.DriverPostgres:
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	case config.DriverSQLite:
		// The file database serializes writers anyway; a small pool is enough.
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Name),
		slog.String("host", cfg.Host),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return db, nil
}

func postgresDSN(cfg config.StorageConfig) string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
	)
}

func sqliteDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

// MigrateURL builds the database URL understood by golang-migrate for the
// configured driver.
func MigrateURL(cfg config.StorageConfig) string {
	switch cfg.Driver {
	case config.DriverPostgres:
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
			cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
		)
	case config.DriverSQLite:
		return "sqlite://" + cfg.Path
	default:
		return ""
	}
}
