// Package pgq is the boundary to the relational engine: a thin query-execution
// collaborator over jackc/pgx. Everything above it (parsing, SQL building,
// access control, response shaping) is a pure transformation; pgq is the only
// layer expected to block.
package pgq

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Conn abstracts over pgx.Conn, pgxpool.Conn and pgxpool.Pool so the schema
// cache and stores can work with either a single connection or a pool.
type Conn interface {
	// Exec executes a SQL statement and returns its command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a SQL query and returns an iterable result set.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
