package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-sqlite3"
)

const (
	readyAttempts    = 30
	readyBaseBackoff = time.Second
	readyMaxBackoff  = 60 * time.Second
)

// DB is a wrapper around sql.DB.
type DB struct {
	*sql.DB
	logger *log.Logger
}

// New opens the database and verifies the connection.
func New(dbPath string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", dbPath)
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	} else if dir := filepath.Dir(dbPath); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// An in-memory database exists per connection; pin the pool to one.
		db.SetMaxOpenConns(1)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "db", ReportTimestamp: true})

	return &DB{DB: db, logger: logger}, nil
}

// Ping is the one-shot readiness probe behind /health/ready.
func (db *DB) Ping(ctx context.Context) error {
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// WaitReady blocks until the backing store answers a trivial probe,
// retrying with exponential backoff. The envelope is 1s doubling to a 60s
// cap across 30 attempts; exhausting it is fatal to startup.
func (db *DB) WaitReady(ctx context.Context) error {
	return waitReady(ctx, db.logger, readyAttempts, readyBaseBackoff, readyMaxBackoff, func(ctx context.Context) error {
		var one int
		return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
}

func waitReady(ctx context.Context, logger *log.Logger, attempts int, base, maxBackoff time.Duration, probe func(context.Context) error) error {
	backoff := base
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := probe(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database ready", "attempts", attempt)
			}
			return nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		logger.Warn("database not ready", "attempt", attempt, "err", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("database readiness wait cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return fmt.Errorf("database not ready after %d attempts: %w", attempts, lastErr)
}

// WithTx executes fn within a transaction, rolling back on error.
func (db *DB) WithTx(fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueViolation classifies a driver error as a UNIQUE constraint hit so
// stores can surface ErrConflict instead of a raw sqlite error.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
