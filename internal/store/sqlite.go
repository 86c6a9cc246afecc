package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/annonymususer90/my99exch/api/schemas"
)

const (
	sqliteSchema = `
        CREATE TABLE IF NOT EXISTS transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            site TEXT NOT NULL,
            kind TEXT NOT NULL,
            account TEXT NOT NULL,
            amount TEXT NOT NULL,
            elapsed_ms INTEGER NOT NULL,
            message TEXT NOT NULL,
            succeeded INTEGER NOT NULL,
            origin TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );
        CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions (created_at);
    `
	sqliteInsert = `
        INSERT INTO transactions (site, kind, account, amount, elapsed_ms, message, succeeded, origin, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	sqliteSelect = `
        SELECT id, site, kind, account, amount, elapsed_ms, message, succeeded, origin, created_at
        FROM transactions
        WHERE created_at >= ? AND created_at < ? AND (? = '' OR origin = ?)
        ORDER BY created_at ASC, id ASC;
    `
)

// SQLite is the embedded audit store. Timestamps are stored as UTC unix
// nanoseconds so range queries compare integers.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// OpenSQLite opens the database at dsn and ensures the schema exists.
func OpenSQLite(ctx context.Context, dsn string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &SQLite{db: db, log: logger.Named("store")}, nil
}

// Record inserts one audit entry.
func (s *SQLite) Record(ctx context.Context, e schemas.AuditEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, sqliteInsert,
		e.Site, e.Operation.AuditCode(), e.Account, e.Amount,
		e.Elapsed.Milliseconds(), e.Message, e.Succeeded, e.Origin,
		created.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// Entries returns the entries matching q, oldest first.
func (s *SQLite) Entries(ctx context.Context, q schemas.AuditQuery) ([]schemas.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect, q.From.UTC().UnixNano(), q.To.UTC().UnixNano(), q.Origin, q.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var entries []schemas.AuditEntry
	for rows.Next() {
		var (
			e         schemas.AuditEntry
			kind      string
			elapsedMs int64
			created   int64
		)
		if err := rows.Scan(&e.ID, &e.Site, &kind, &e.Account, &e.Amount, &elapsedMs, &e.Message, &e.Succeeded, &e.Origin, &created); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		e.Operation = schemas.OperationFromAuditCode(kind)
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
