package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tiback/helpdesk/internal/persistence"
)

// Querier is the subset of pgx operations repositories issue. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same repository serves
// plain reads and transactional writes.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querierFrom prefers the transaction carried by the context over the
// shared pool.
func querierFrom(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := persistence.TxFrom(ctx); ok {
		return tx
	}
	return pool
}
