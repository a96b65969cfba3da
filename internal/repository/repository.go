// Package repository provides persistent storage for teams, balances,
// trades, prices, competitions and portfolio snapshots using SQLite.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrInsufficientFunds is returned by ApplyTrade when the source balance is
// smaller than the debit at commit time.
var ErrInsufficientFunds = errors.New("insufficient balance")

// Store is the SQLite-backed persistence layer. All component stores share
// one connection pool; SQLite allows a single writer, so the pool is capped
// at one open connection.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the database at path and initializes
// the schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, logger: logger.Named("Store")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS teams (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		api_key    TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS balances (
		team_id        TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		token_address  TEXT NOT NULL,
		amount         REAL NOT NULL CHECK (amount >= 0),
		specific_chain TEXT,
		UNIQUE (team_id, token_address)
	);
	CREATE INDEX IF NOT EXISTS idx_balances_team ON balances (team_id, token_address);

	CREATE TABLE IF NOT EXISTS trades (
		id                  TEXT PRIMARY KEY,
		team_id             TEXT NOT NULL,
		competition_id      TEXT NOT NULL,
		from_token          TEXT NOT NULL,
		to_token            TEXT NOT NULL,
		from_amount         REAL NOT NULL,
		to_amount           REAL NOT NULL,
		price               REAL NOT NULL,
		success             INTEGER NOT NULL,
		reason              TEXT,
		error               TEXT,
		from_chain          TEXT NOT NULL,
		to_chain            TEXT NOT NULL,
		from_specific_chain TEXT,
		to_specific_chain   TEXT,
		timestamp           INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_team_ts ON trades (team_id, timestamp DESC);

	CREATE TABLE IF NOT EXISTS prices (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		token          TEXT NOT NULL,
		chain          TEXT NOT NULL,
		specific_chain TEXT NOT NULL,
		price_usd      REAL NOT NULL CHECK (price_usd > 0),
		timestamp      INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_prices_token ON prices (token);
	CREATE INDEX IF NOT EXISTS idx_prices_token_chain ON prices (token, specific_chain);

	CREATE TABLE IF NOT EXISTS competitions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL,
		start_date INTEGER,
		end_date   INTEGER
	);

	CREATE TABLE IF NOT EXISTS competition_teams (
		competition_id TEXT NOT NULL REFERENCES competitions(id) ON DELETE CASCADE,
		team_id        TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
		PRIMARY KEY (competition_id, team_id)
	);

	CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id              TEXT PRIMARY KEY,
		competition_id  TEXT NOT NULL,
		team_id         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		total_value_usd REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_comp_team_ts
		ON portfolio_snapshots (competition_id, team_id, timestamp DESC);

	CREATE TABLE IF NOT EXISTS portfolio_token_values (
		snapshot_id    TEXT NOT NULL REFERENCES portfolio_snapshots(id) ON DELETE CASCADE,
		token_address  TEXT NOT NULL,
		amount         REAL NOT NULL,
		price_usd      REAL NOT NULL,
		value_usd      REAL NOT NULL,
		specific_chain TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_token_values_snapshot ON portfolio_token_values (snapshot_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
