package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
)

// LineItemRow is one allocation row of a consignment or event.
type LineItemRow struct {
	ID                uuid.UUID  `db:"id"`
	ConsignmentID     uuid.UUID  `db:"consignment_id"`
	ProductLabel      string     `db:"product_label"`
	UnitPrice         float64    `db:"unit_price"`
	QuantityAllocated int        `db:"quantity_allocated"`
	QuantitySold      int        `db:"quantity_sold"`
	QuantityReturned  int        `db:"quantity_returned"`
	QuantityRemaining int        `db:"quantity_remaining"`
	UsedAsPayment     int        `db:"used_as_payment"`
	AllocationID      *uuid.UUID `db:"allocation_id"`
	CountedReturn     *int       `db:"counted_return"`
	Divergence        *int       `db:"divergence"`
	DivergenceNotes   *string    `db:"divergence_notes"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// ListLineItems returns all allocation rows of a consignment for the current
// tenant, ordered by product label.
func (s *Store) ListLineItems(ctx context.Context, consignmentID uuid.UUID) ([]LineItemRow, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.
		Select("id", "consignment_id", "product_label", "unit_price",
			"quantity_allocated", "quantity_sold", "quantity_returned", "quantity_remaining",
			"used_as_payment", "allocation_id", "counted_return", "divergence", "divergence_notes", "updated_at").
		From("line_items").
		Where(squirrel.Eq{"tenant_id": tid, "consignment_id": consignmentID}).
		OrderBy("product_label").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list line items: %w", err)
	}
	var rows []LineItemRow
	if err := pgxscan.Select(ctx, s.Pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list line items: %w", err)
	}
	return rows, nil
}

// SettlementItemUpdate is the per-item delta written when a settlement commits.
type SettlementItemUpdate struct {
	ID                uuid.UUID
	QuantitySold      int
	QuantityRemaining int
	UsedAsPayment     int
}

// ApplySettlementItem writes one line item's settlement delta. The update is
// keyed by primary key and tenant; a zero row count means the row vanished or
// belongs to another tenant.
func (s *Store) ApplySettlementItem(ctx context.Context, upd SettlementItemUpdate) error {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return err
	}
	query, args, err := s.sb.
		Update("line_items").
		Set("quantity_sold", upd.QuantitySold).
		Set("quantity_remaining", upd.QuantityRemaining).
		Set("used_as_payment", upd.UsedAsPayment).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": upd.ID, "tenant_id": tid}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build settlement item update: %w", err)
	}
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply settlement item %s: %w", upd.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line item %s: %w", upd.ID, ErrNotFound)
	}
	return nil
}

// CountItemUpdate is the per-item delta written when a blind count confirms.
type CountItemUpdate struct {
	ID              uuid.UUID
	CountedReturn   int
	Divergence      int
	DivergenceNotes string
}

// ApplyCountItem writes one line item's reconciliation result.
func (s *Store) ApplyCountItem(ctx context.Context, upd CountItemUpdate) error {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return err
	}
	var notes *string
	if upd.DivergenceNotes != "" {
		notes = &upd.DivergenceNotes
	}
	query, args, err := s.sb.
		Update("line_items").
		Set("counted_return", upd.CountedReturn).
		Set("divergence", upd.Divergence).
		Set("divergence_notes", notes).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": upd.ID, "tenant_id": tid}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build count item update: %w", err)
	}
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply count item %s: %w", upd.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("line item %s: %w", upd.ID, ErrNotFound)
	}
	return nil
}
