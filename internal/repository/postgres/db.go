package postgres

import (
	"context"
	"database/sql"

	"ridedispatch/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)

	_ repository.RideRepository    = (*RideRepository)(nil)
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.CaptainRepository = (*CaptainRepository)(nil)
)
