package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateConsignment inserts a new open consignment or event and returns its id.
func (s *Store) CreateConsignment(ctx context.Context, kind, partnerName string, commissionPercent float64) (uuid.UUID, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	query, args, err := s.sb.
		Insert("consignments").
		Columns("id", "tenant_id", "kind", "partner_name", "commission_percent", "status", "created_at").
		Values(id, tid, kind, partnerName, commissionPercent, "open", time.Now()).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build create consignment: %w", err)
	}
	if _, err := s.Pool.Exec(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("create consignment: %w", err)
	}
	return id, nil
}

// AddLineItem inserts one allocation row under a consignment and returns its
// id. allocationID links the row to its stock reservation; pass uuid.Nil when
// the line was not reserved against inventory.
func (s *Store) AddLineItem(ctx context.Context, consignmentID uuid.UUID, productLabel string, unitPrice float64, quantity int, allocationID uuid.UUID) (uuid.UUID, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	var alloc *uuid.UUID
	if allocationID != uuid.Nil {
		alloc = &allocationID
	}
	id := uuid.New()
	query, args, err := s.sb.
		Insert("line_items").
		Columns("id", "tenant_id", "consignment_id", "product_label", "unit_price",
			"quantity_allocated", "quantity_sold", "quantity_returned", "quantity_remaining",
			"used_as_payment", "allocation_id", "updated_at").
		Values(id, tid, consignmentID, productLabel, unitPrice,
			quantity, 0, 0, quantity, 0, alloc, time.Now()).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build add line item: %w", err)
	}
	if _, err := s.Pool.Exec(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("add line item: %w", err)
	}
	return id, nil
}
