package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -destination=./mocks/db.go -package=mocks github.com/meleshyn/comments-spa/internal/adapter/out/storage/postgres DB

// DB is the query surface the storage needs. *pgxpool.Pool satisfies it, and
// so does the transaction the trm manager binds to the context.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
