package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
)

// TenantRow is one registered tenant.
type TenantRow struct {
	ID        uuid.UUID `db:"id"`
	Slug      string    `db:"slug"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// ListTenants returns every tenant. This is a cross-tenant query used only by
// the worker and tooling, never by request handlers.
func (s *Store) ListTenants(ctx context.Context) ([]TenantRow, error) {
	query, args, err := s.sb.
		Select("id", "slug", "name", "created_at").
		From("tenants").
		OrderBy("slug").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tenants: %w", err)
	}
	var rows []TenantRow
	if err := pgxscan.Select(ctx, s.Pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return rows, nil
}
