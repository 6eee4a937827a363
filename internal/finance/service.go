// Package finance records and lists the flat financial transactions that the
// income statement is derived from.
package finance

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Querier defines the store access required by transaction operations.
type Querier interface {
	ListTransactions(ctx context.Context, f repo.TransactionFilter) ([]repo.TransactionRow, error)
	InsertTransaction(ctx context.Context, row repo.TransactionRow) (uuid.UUID, error)
}

// Service records and lists financial transactions.
type Service struct {
	Q        Querier
	Validate *validator.Validate
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RecordInput is a new transaction submitted through the API.
type RecordInput struct {
	Type        string     `json:"type" validate:"required,oneof=income expense"`
	DreCategory string     `json:"dreCategory" validate:"omitempty,oneof=sales operational_cost cogs other"`
	CashImpact  bool       `json:"cashImpact"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	Description string     `json:"description" validate:"required,max=500"`
	OccurredAt  *time.Time `json:"occurredAt"`
}

// Record validates and stores one transaction, returning its id.
func (s *Service) Record(ctx context.Context, in RecordInput) (uuid.UUID, error) {
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return uuid.Nil, common.NewAppError("TRANSACTION_INVALID", err.Error(), http.StatusUnprocessableEntity, err)
		}
	}
	occurredAt := s.now()
	if in.OccurredAt != nil {
		occurredAt = *in.OccurredAt
	}
	return s.Q.InsertTransaction(ctx, repo.TransactionRow{
		Type:        in.Type,
		DreCategory: in.DreCategory,
		CashImpact:  in.CashImpact,
		Amount:      in.Amount,
		Description: in.Description,
		OccurredAt:  occurredAt,
	})
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, f repo.TransactionFilter) ([]repo.TransactionRow, error) {
	return s.Q.ListTransactions(ctx, f)
}
