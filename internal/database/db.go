// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package database provides a dialect-aware database layer over SQLite and
// PostgreSQL. Queries are written once with `?` placeholders and rebound to
// `$N` on the Postgres dialect. Prepared statements are cached with a TTL
// and closed on eviction.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"

	"github.com/mozhaa/hanyuu/internal/dbinterface"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultBusyTimeout       = 5 * time.Second
	defaultBusyTimeoutMillis = int(defaultBusyTimeout / time.Millisecond)
	connectionSetupTimeout   = 5 * time.Second
)

// DB wraps a writer connection and a reader pool over one logical database.
//
// On SQLite the writer is capped at a single connection so that writes are
// serialized while WAL mode lets readers proceed concurrently. On Postgres
// both sides are ordinary pools.
type DB struct {
	writerConn  *sql.DB
	readerPool  *sql.DB
	writerStmts *ttlcache.Cache[string, *sql.Stmt]
	readerStmts *ttlcache.Cache[string, *sql.Stmt]
	dialect     Dialect

	closeOnce sync.Once
	closeErr  error
}

var driverInit sync.Once

type pragmaExecFn func(ctx context.Context, stmt string) error

func registerConnectionHook() {
	driverInit.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
			defer cancel()

			return applyConnectionPragmas(ctx, func(ctx context.Context, stmt string) error {
				_, err := conn.ExecContext(ctx, stmt, nil)
				if err != nil {
					return fmt.Errorf("connection hook exec %q: %w", stmt, err)
				}
				return nil
			})
		})
	})
}

func applyConnectionPragmas(ctx context.Context, exec pragmaExecFn) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", defaultBusyTimeoutMillis),
		"PRAGMA analysis_limit = 400",
	}

	for _, pragma := range pragmas {
		if err := exec(ctx, pragma); err != nil {
			return fmt.Errorf("apply connection pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// New opens (creating if necessary) a SQLite database at databasePath and
// applies pending migrations.
func New(databasePath string) (*DB, error) {
	log.Info().Msgf("Initializing database at: %s", databasePath)

	dir := filepath.Dir(databasePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	registerConnectionHook()

	writerConn, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}

	// Single connection on the write side: serializes writes and prevents
	// stale-schema issues during migrations.
	writerConn.SetMaxOpenConns(1)
	writerConn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
	defer cancel()
	if err := applyConnectionPragmas(ctx, func(ctx context.Context, stmt string) error {
		_, execErr := writerConn.ExecContext(ctx, stmt)
		return execErr
	}); err != nil {
		writerConn.Close()
		return nil, err
	}

	if _, err := writerConn.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		writerConn.Close()
		return nil, fmt.Errorf("apply wal checkpoint: %w", err)
	}

	db := &DB{
		writerConn:  writerConn,
		writerStmts: newStmtCache(),
		readerStmts: newStmtCache(),
		dialect:     DialectSQLite,
	}

	if err := db.migrateSQLite(); err != nil {
		writerConn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	readerPool, err := sql.Open("sqlite", databasePath)
	if err != nil {
		writerConn.Close()
		return nil, fmt.Errorf("failed to open reader pool at %s: %w", databasePath, err)
	}
	readerPool.SetMaxOpenConns(4)
	readerPool.SetMaxIdleConns(2)
	db.readerPool = readerPool

	if _, err := os.Stat(databasePath); err != nil {
		writerConn.Close()
		readerPool.Close()
		return nil, fmt.Errorf("database file was not created at %s: %w", databasePath, err)
	}
	log.Info().Msgf("Database initialized successfully at: %s", databasePath)

	return db, nil
}

func newStmtCache() *ttlcache.Cache[string, *sql.Stmt] {
	opts := ttlcache.Options[string, *sql.Stmt]{}.SetDefaultTTL(5 * time.Minute).
		SetDeallocationFunc(func(_ string, s *sql.Stmt, _ ttlcache.DeallocationReason) {
			if s != nil {
				_ = s.Close()
			}
		})
	return ttlcache.New(opts)
}

// getStmt returns a prepared statement for the given query on the chosen
// side, preparing and caching it if necessary. Safe for concurrent use; a
// losing duplicate prepare is closed by the cache deallocation func.
func (db *DB) getStmt(ctx context.Context, query string, writer bool) (*sql.Stmt, error) {
	cache, conn := db.readerStmts, db.readerPool
	if writer {
		cache, conn = db.writerStmts, db.writerConn
	}

	if s, found := cache.Get(query); found && s != nil {
		return s, nil
	}

	s, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}

	cache.Set(query, s, ttlcache.DefaultTTL)
	return s, nil
}

// isWriteQuery determines whether a query mutates data. RETURNING queries
// issued through QueryRowContext/QueryContext are still routed to the writer
// by this check.
func isWriteQuery(query string) bool {
	q := strings.TrimLeftFunc(query, unicode.IsSpace)
	if q == "" {
		return false
	}

	upper := strings.ToUpper(q)
	return strings.HasPrefix(upper, "INSERT") ||
		strings.HasPrefix(upper, "UPDATE") ||
		strings.HasPrefix(upper, "UPSERT") ||
		strings.HasPrefix(upper, "REPLACE") ||
		strings.HasPrefix(upper, "DELETE")
}

// ExecContext executes a query, routing writes to the writer connection and
// reads to the reader pool, using cached prepared statements when possible.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = db.bindQuery(query)
	writer := isWriteQuery(query)

	stmt, err := db.getStmt(ctx, query, writer)
	if err != nil {
		if writer {
			return db.writerConn.ExecContext(ctx, query, args...)
		}
		return db.readerPool.ExecContext(ctx, query, args...)
	}
	return stmt.ExecContext(ctx, args...)
}

// QueryContext executes a query using cached prepared statements. Write
// queries with RETURNING clauses go through the writer connection.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = db.bindQuery(query)
	writer := isWriteQuery(query)

	stmt, err := db.getStmt(ctx, query, writer)
	if err != nil {
		if writer {
			return db.writerConn.QueryContext(ctx, query, args...)
		}
		return db.readerPool.QueryContext(ctx, query, args...)
	}
	return stmt.QueryContext(ctx, args...)
}

// QueryRowContext executes a query and scans the first row. Write queries
// with RETURNING clauses go through the writer connection.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	query = db.bindQuery(query)
	writer := isWriteQuery(query)

	stmt, err := db.getStmt(ctx, query, writer)
	if err != nil {
		if writer {
			return db.writerConn.QueryRowContext(ctx, query, args...)
		}
		return db.readerPool.QueryRowContext(ctx, query, args...)
	}
	return stmt.QueryRowContext(ctx, args...)
}

// Tx wraps sql.Tx to rebind placeholders and reuse the prepared statement
// cache for transaction queries.
type Tx struct {
	tx     *sql.Tx
	db     *DB
	writer bool
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = t.db.bindQuery(query)
	stmt, err := t.db.getStmt(ctx, query, t.writer)
	if err != nil {
		return t.tx.ExecContext(ctx, query, args...)
	}

	txStmt := t.tx.StmtContext(ctx, stmt)
	defer txStmt.Close()
	return txStmt.ExecContext(ctx, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = t.db.bindQuery(query)
	stmt, err := t.db.getStmt(ctx, query, t.writer)
	if err != nil {
		return t.tx.QueryContext(ctx, query, args...)
	}

	txStmt := t.tx.StmtContext(ctx, stmt)
	defer txStmt.Close()
	return txStmt.QueryContext(ctx, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	query = t.db.bindQuery(query)
	stmt, err := t.db.getStmt(ctx, query, t.writer)
	if err != nil {
		return t.tx.QueryRowContext(ctx, query, args...)
	}

	txStmt := t.tx.StmtContext(ctx, stmt)
	defer txStmt.Close()
	return txStmt.QueryRowContext(ctx, args...)
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// BeginTx starts a transaction. Write transactions use the writer connection
// (serialized on SQLite); read-only transactions use the reader pool.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (dbinterface.TxQuerier, error) {
	isReadOnly := opts != nil && opts.ReadOnly

	var (
		tx  *sql.Tx
		err error
	)
	if isReadOnly {
		tx, err = db.readerPool.BeginTx(ctx, opts)
	} else {
		tx, err = db.writerConn.BeginTx(ctx, opts)
	}
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: db, writer: !isReadOnly}, nil
}

func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		if db.dialect == DialectSQLite {
			ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
			defer cancel()
			if _, err := db.writerConn.ExecContext(ctx, "PRAGMA optimize"); err != nil {
				log.Warn().Err(err).Msg("failed to run PRAGMA optimize during close")
			}
		}

		db.writerStmts.Close()
		db.readerStmts.Close()

		if db.readerPool != nil {
			if err := db.readerPool.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close reader pool")
			}
		}
		db.closeErr = db.writerConn.Close()
	})

	return db.closeErr
}

// Conn exposes the writer connection for callers that need raw pool access.
func (db *DB) Conn() *sql.DB {
	return db.writerConn
}

func (db *DB) migrateSQLite() error {
	ctx := context.Background()

	if _, err := db.writerConn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	pendingMigrations, err := db.findPendingMigrations(ctx, files)
	if err != nil {
		return fmt.Errorf("failed to find pending migrations: %w", err)
	}

	if len(pendingMigrations) == 0 {
		log.Debug().Msg("No pending migrations")
		return nil
	}

	if err := db.applyAllMigrations(ctx, pendingMigrations); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func (db *DB) findPendingMigrations(ctx context.Context, allFiles []string) ([]string, error) {
	var pendingMigrations []string

	for _, filename := range allFiles {
		var count int
		err := db.writerConn.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE filename = ?", filename).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("failed to check migration status for %s: %w", filename, err)
		}

		if count == 0 {
			pendingMigrations = append(pendingMigrations, filename)
		}
	}

	return pendingMigrations, nil
}

func (db *DB) applyAllMigrations(ctx context.Context, migrations []string) error {
	tx, err := db.writerConn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, filename := range migrations {
		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (filename) VALUES (?)", filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	log.Info().Msgf("Applied %d migrations successfully", len(migrations))
	return nil
}

// NewForTest wraps an existing sql.DB connection for testing purposes. It
// does not run migrations; the same connection backs both sides.
func NewForTest(conn *sql.DB) *DB {
	return &DB{
		writerConn:  conn,
		readerPool:  conn,
		writerStmts: newStmtCache(),
		readerStmts: newStmtCache(),
		dialect:     DialectSQLite,
	}
}
