package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConsignmentRow is the parent aggregate of allocated line items. Kind is
// either "consignment" (a partner store) or "event" (a pop-up/bazar).
type ConsignmentRow struct {
	ID                uuid.UUID  `db:"id"`
	Kind              string     `db:"kind"`
	PartnerName       string     `db:"partner_name"`
	CommissionPercent float64    `db:"commission_percent"`
	Status            string     `db:"status"`
	SettledAt         *time.Time `db:"settled_at"`
	StockAuditedAt    *time.Time `db:"stock_audited_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// GetConsignment fetches one consignment by id for the current tenant.
func (s *Store) GetConsignment(ctx context.Context, id uuid.UUID) (ConsignmentRow, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return ConsignmentRow{}, err
	}
	query, args, err := s.sb.
		Select("id", "kind", "partner_name", "commission_percent", "status",
			"settled_at", "stock_audited_at", "created_at").
		From("consignments").
		Where(squirrel.Eq{"id": id, "tenant_id": tid}).
		ToSql()
	if err != nil {
		return ConsignmentRow{}, fmt.Errorf("build get consignment: %w", err)
	}
	var row ConsignmentRow
	if err := pgxscan.Get(ctx, s.Pool, &row, query, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConsignmentRow{}, fmt.Errorf("consignment %s: %w", id, ErrNotFound)
		}
		return ConsignmentRow{}, fmt.Errorf("get consignment: %w", err)
	}
	return row, nil
}

// ListConsignments returns a page of the tenant's consignments, optionally
// filtered by kind and status.
func (s *Store) ListConsignments(ctx context.Context, kind, status string, limit, offset int) ([]ConsignmentRow, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}
	b := s.sb.
		Select("id", "kind", "partner_name", "commission_percent", "status",
			"settled_at", "stock_audited_at", "created_at").
		From("consignments").
		Where(squirrel.Eq{"tenant_id": tid}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if kind != "" {
		b = b.Where(squirrel.Eq{"kind": kind})
	}
	if status != "" {
		b = b.Where(squirrel.Eq{"status": status})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list consignments: %w", err)
	}
	var rows []ConsignmentRow
	if err := pgxscan.Select(ctx, s.Pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list consignments: %w", err)
	}
	return rows, nil
}

// SettleConsignment records the settled status derived from the payment
// composition (cash, stock, or mixed) and stamps the settlement time.
func (s *Store) SettleConsignment(ctx context.Context, id uuid.UUID, status string, settledAt time.Time) error {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.
		Update("consignments").
		Set("status", status).
		Set("settled_at", settledAt).
		Where(squirrel.Eq{"id": id, "tenant_id": tid}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build settle consignment: %w", err)
	}
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("settle consignment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consignment %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkStockAudited stamps the reconciliation audit time on an event after a
// confirmed blind count.
func (s *Store) MarkStockAudited(ctx context.Context, id uuid.UUID, at time.Time) error {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.
		Update("consignments").
		Set("stock_audited_at", at).
		Where(squirrel.Eq{"id": id, "tenant_id": tid}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark stock audited: %w", err)
	}
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark stock audited %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("consignment %s: %w", id, ErrNotFound)
	}
	return nil
}
