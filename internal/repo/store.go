// Package repo contains the tenant-scoped Postgres repositories. Every query
// filters by the tenant id taken from the request context; an operation that
// reaches this layer without a tenant fails before touching the database.
package repo

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

// ErrNotFound is returned when a row does not exist for the current tenant.
var ErrNotFound = errors.New("repo: not found")

// Store bundles the connection pool with a statement builder configured for
// Postgres placeholders.
type Store struct {
	Pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

// NewStore constructs a Store over the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (s *Store) tenantID(ctx context.Context) (string, error) {
	id, err := tenant.UUIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
