package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/annonymususer90/my99exch/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

const (
	pgSchema = `
        CREATE TABLE IF NOT EXISTS transactions (
            id BIGSERIAL PRIMARY KEY,
            site TEXT NOT NULL,
            kind TEXT NOT NULL,
            account TEXT NOT NULL,
            amount TEXT NOT NULL,
            elapsed_ms BIGINT NOT NULL,
            message TEXT NOT NULL,
            succeeded BOOLEAN NOT NULL,
            origin TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
        CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions (created_at);
    `
	pgInsert = `
        INSERT INTO transactions (site, kind, account, amount, elapsed_ms, message, succeeded, origin, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	pgSelect = `
        SELECT id, site, kind, account, amount, elapsed_ms, message, succeeded, origin, created_at
        FROM transactions
        WHERE created_at >= $1 AND created_at < $2 AND ($3 = '' OR origin = $3)
        ORDER BY created_at ASC, id ASC;
    `
)

// Postgres is the PostgreSQL audit store.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// OpenPostgres connects a pool to url and prepares the schema.
func OpenPostgres(ctx context.Context, url string, maxConns int32, logger *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres verifies the connection and ensures the schema exists.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Postgres{pool: pool, log: logger.Named("store")}, nil
}

// Record inserts one audit entry.
func (s *Postgres) Record(ctx context.Context, e schemas.AuditEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.pool.Exec(ctx, pgInsert,
		e.Site, e.Operation.AuditCode(), e.Account, e.Amount,
		e.Elapsed.Milliseconds(), e.Message, e.Succeeded, e.Origin,
		created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// Entries returns the entries matching q, oldest first.
func (s *Postgres) Entries(ctx context.Context, q schemas.AuditQuery) ([]schemas.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, pgSelect, q.From.UTC(), q.To.UTC(), q.Origin)
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
		)
		if err := rows.Scan(&e.ID, &e.Site, &kind, &e.Account, &e.Amount, &elapsedMs, &e.Message, &e.Succeeded, &e.Origin, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		e.Operation = schemas.OperationFromAuditCode(kind)
		e.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
