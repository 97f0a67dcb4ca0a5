package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries runs the layout snapshot statements against a DBTX.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// DB exposes the underlying connection so callers can run raw SQL when needed.
func (q *Queries) DB() DBTX {
	return q.db
}

// Init opens a Postgres pool and pings it.
func Init(connStr string) (*sql.DB, *Queries, error) {
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, New(conn), nil
}

const schema = `
CREATE TABLE IF NOT EXISTS layout_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    step        BIGINT NOT NULL,
    version     BIGINT NOT NULL,
    dims        INTEGER NOT NULL,
    node_count  INTEGER NOT NULL,
    energy      DOUBLE PRECISION NOT NULL DEFAULT 0,
    positions   JSONB NOT NULL,
    tree        JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS layout_snapshots_created_at_idx ON layout_snapshots (created_at DESC);
`

// Migrate creates the layout_snapshots table if it does not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate layout_snapshots: %w", err)
	}
	return nil
}
