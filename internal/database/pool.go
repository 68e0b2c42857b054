package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/bitaek-watch/internal/config"
)

// SnapshotTable receives one row per recorded store value.
const SnapshotTable = "store_snapshots"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS store_snapshots (
	id           UUID PRIMARY KEY,
	method       TEXT NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL,
	record_count INTEGER NOT NULL,
	records      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS store_snapshots_method_received_at_idx
	ON store_snapshots (method, received_at DESC);
`

// Execer runs a statement. Satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the snapshot table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create %s: %w", SnapshotTable, err)
	}
	return nil
}
