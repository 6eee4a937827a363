// Package consignment manages the consignment and event aggregates: creation
// with stock allocations, listing, and detail views. Settlement math lives in
// the settlement package; this one owns the lifecycle around it.
package consignment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/stock"
)

// Querier defines the store access required by consignment management.
type Querier interface {
	CreateConsignment(ctx context.Context, kind, partnerName string, commissionPercent float64) (uuid.UUID, error)
	AddLineItem(ctx context.Context, consignmentID uuid.UUID, productLabel string, unitPrice float64, quantity int, allocationID uuid.UUID) (uuid.UUID, error)
	GetConsignment(ctx context.Context, id uuid.UUID) (repo.ConsignmentRow, error)
	ListConsignments(ctx context.Context, kind, status string, limit, offset int) ([]repo.ConsignmentRow, error)
	ListLineItems(ctx context.Context, consignmentID uuid.UUID) ([]repo.LineItemRow, error)
}

// Service manages consignment lifecycle outside of settlement.
type Service struct {
	Q                 Querier
	Ledger            stock.Ledger
	DefaultCommission float64
}

// AllocationInput is one product allocation in a create request.
type AllocationInput struct {
	InventoryID  uuid.UUID `json:"inventoryId"`
	ProductLabel string    `json:"productLabel"`
	UnitPrice    float64   `json:"unitPrice"`
	Quantity     int       `json:"quantity"`
}

// CreateInput describes a new consignment or event.
type CreateInput struct {
	Kind              string            `json:"kind"`
	PartnerName       string            `json:"partnerName"`
	CommissionPercent float64           `json:"commissionPercent"`
	Allocations       []AllocationInput `json:"allocations"`
}

// Detail is a consignment with its allocation rows.
type Detail struct {
	Consignment repo.ConsignmentRow `json:"consignment"`
	Items       []repo.LineItemRow  `json:"items"`
}

func (in CreateInput) validate() error {
	if in.Kind != "consignment" && in.Kind != "event" {
		return common.NewAppError("BAD_KIND", "kind must be consignment or event", http.StatusUnprocessableEntity, nil)
	}
	if in.PartnerName == "" {
		return common.NewAppError("PARTNER_REQUIRED", "partner name is required", http.StatusUnprocessableEntity, nil)
	}
	if in.CommissionPercent < 0 || in.CommissionPercent > 100 {
		return common.NewAppError("BAD_COMMISSION", "commission percent must be within 0-100", http.StatusUnprocessableEntity, nil)
	}
	if len(in.Allocations) == 0 {
		return common.NewAppError("ALLOCATIONS_REQUIRED", "at least one allocation is required", http.StatusUnprocessableEntity, nil)
	}
	for _, a := range in.Allocations {
		if a.Quantity <= 0 {
			return common.NewAppError("BAD_QUANTITY", fmt.Sprintf("%s: quantity must be positive", a.ProductLabel), http.StatusUnprocessableEntity, nil)
		}
		if a.UnitPrice < 0 {
			return common.NewAppError("BAD_PRICE", fmt.Sprintf("%s: unit price must not be negative", a.ProductLabel), http.StatusUnprocessableEntity, nil)
		}
	}
	return nil
}

// Create opens a consignment and reserves stock for every allocation.
func (s *Service) Create(ctx context.Context, in CreateInput) (Detail, error) {
	if err := in.validate(); err != nil {
		return Detail{}, err
	}
	rate := in.CommissionPercent
	if rate == 0 {
		rate = s.DefaultCommission
	}
	id, err := s.Q.CreateConsignment(ctx, in.Kind, in.PartnerName, rate)
	if err != nil {
		return Detail{}, err
	}
	for _, a := range in.Allocations {
		// Reserve first so the reservation id lands on the line item; the
		// reconciler later returns counted stock against that id.
		allocationID := uuid.Nil
		if s.Ledger != nil && a.InventoryID != uuid.Nil {
			allocationID, err = s.Ledger.Allocate(ctx, id, a.InventoryID, a.Quantity)
			if err != nil {
				return Detail{}, fmt.Errorf("reserve stock for %s: %w", a.ProductLabel, err)
			}
		}
		if _, err := s.Q.AddLineItem(ctx, id, a.ProductLabel, a.UnitPrice, a.Quantity, allocationID); err != nil {
			return Detail{}, err
		}
	}
	return s.Detail(ctx, id)
}

// List returns a page of consignments filtered by kind and status.
func (s *Service) List(ctx context.Context, kind, status string, limit, offset int) ([]repo.ConsignmentRow, error) {
	return s.Q.ListConsignments(ctx, kind, status, limit, offset)
}

// Detail returns a consignment with its items.
func (s *Service) Detail(ctx context.Context, id uuid.UUID) (Detail, error) {
	row, err := s.Q.GetConsignment(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.Q.ListLineItems(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Consignment: row, Items: items}, nil
}
