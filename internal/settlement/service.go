package settlement

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/events"
	"github.com/ateliemoda/backend-atelie/internal/money"
	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Querier defines the store access required by settlement operations.
type Querier interface {
	GetConsignment(ctx context.Context, id uuid.UUID) (repo.ConsignmentRow, error)
	ListLineItems(ctx context.Context, consignmentID uuid.UUID) ([]repo.LineItemRow, error)
	ApplySettlementItem(ctx context.Context, upd repo.SettlementItemUpdate) error
	SettleConsignment(ctx context.Context, id uuid.UUID, status string, settledAt time.Time) error
	InsertTransaction(ctx context.Context, row repo.TransactionRow) (uuid.UUID, error)
}

// Service orchestrates settlement previews and commits.
type Service struct {
	Q                 Querier
	Bus               *events.Bus
	DefaultCommission float64
	Now               func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ItemInput is one line's sold-now quantity submitted by the operator.
type ItemInput struct {
	ID           uuid.UUID `json:"id"`
	QuantitySold int       `json:"quantitySold"`
}

// Input is a settlement preview or commit request.
type Input struct {
	Items               []ItemInput       `json:"items"`
	StockPayment        map[uuid.UUID]int `json:"stockPayment"`
	StockPaymentEnabled bool              `json:"stockPaymentEnabled"`
	CommissionPercent   *float64          `json:"commissionPercent"`
}

// LineResult is one line as shown in a preview or commit response.
type LineResult struct {
	ID                uuid.UUID `json:"id"`
	ProductLabel      string    `json:"productLabel"`
	UnitPrice         float64   `json:"unitPrice"`
	QuantityRemaining int       `json:"quantityRemaining"`
	QuantitySold      int       `json:"quantitySold"`
	LineValue         float64   `json:"lineValue"`
}

// Result is the full settlement computation for a consignment.
type Result struct {
	ConsignmentID     uuid.UUID    `json:"consignmentId"`
	CommissionPercent float64      `json:"commissionPercent"`
	Lines             []LineResult `json:"lines"`
	Totals            Totals       `json:"totals"`
	Status            string       `json:"status"`
}

func (s *Service) load(ctx context.Context, consignmentID uuid.UUID, in Input) (repo.ConsignmentRow, []LineItem, float64, error) {
	row, err := s.Q.GetConsignment(ctx, consignmentID)
	if err != nil {
		return repo.ConsignmentRow{}, nil, 0, err
	}
	rows, err := s.Q.ListLineItems(ctx, consignmentID)
	if err != nil {
		return repo.ConsignmentRow{}, nil, 0, err
	}
	soldNow := make(map[uuid.UUID]int, len(in.Items))
	for _, it := range in.Items {
		soldNow[it.ID] = it.QuantitySold
	}
	items := make([]LineItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, LineItem{
			ID:                    r.ID,
			ProductLabel:          r.ProductLabel,
			QuantityAllocated:     r.QuantityAllocated,
			QuantitySoldPrior:     r.QuantitySold,
			QuantityReturnedPrior: r.QuantityReturned,
			QuantitySoldNow:       soldNow[r.ID],
			UnitPrice:             r.UnitPrice,
		})
	}
	rate := row.CommissionPercent
	if in.CommissionPercent != nil {
		rate = *in.CommissionPercent
	}
	if rate <= 0 {
		rate = s.DefaultCommission
	}
	return row, items, rate, nil
}

func buildResult(consignmentID uuid.UUID, items []LineItem, rate float64, totals Totals) Result {
	lines := make([]LineResult, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineResult{
			ID:                it.ID,
			ProductLabel:      it.ProductLabel,
			UnitPrice:         it.UnitPrice,
			QuantityRemaining: it.Remaining(),
			QuantitySold:      it.QuantitySoldNow,
			LineValue:         money.Mul2(float64(it.QuantitySoldNow), it.UnitPrice),
		})
	}
	return Result{
		ConsignmentID:     consignmentID,
		CommissionPercent: rate,
		Lines:             lines,
		Totals:            totals,
		Status:            totals.Status(),
	}
}

// Preview computes totals without writing anything. Out-of-range quantities
// are clamped instead of rejected so the numbers track the operator's typing.
func (s *Service) Preview(ctx context.Context, consignmentID uuid.UUID, in Input) (Result, error) {
	_, items, rate, err := s.load(ctx, consignmentID, in)
	if err != nil {
		return Result{}, err
	}
	items = Clamp(items)
	sp := ClampStockPayment(items, in.StockPayment)
	totals := Compute(items, rate, sp, in.StockPaymentEnabled)
	return buildResult(consignmentID, items, rate, totals), nil
}

// Settle validates and commits a settlement. Per-item quantity updates are
// issued concurrently; if any fails the consignment status is left untouched
// so the commit can be retried after the partial writes are inspected. There
// is no rollback of already-applied items.
func (s *Service) Settle(ctx context.Context, consignmentID uuid.UUID, in Input) (Result, error) {
	row, items, rate, err := s.load(ctx, consignmentID, in)
	if err != nil {
		return Result{}, err
	}
	if row.Status != "" && row.Status != "open" {
		return Result{}, common.NewAppError("ALREADY_SETTLED",
			fmt.Sprintf("consignment already settled as %s", row.Status),
			http.StatusConflict, nil)
	}
	if err := Validate(items, in.StockPayment, in.StockPaymentEnabled); err != nil {
		obs.SettlementsTotal.WithLabelValues("rejected", "validation").Inc()
		return Result{}, common.NewAppError("SETTLEMENT_INVALID", err.Error(), http.StatusUnprocessableEntity, err)
	}
	totals := Compute(items, rate, in.StockPayment, in.StockPaymentEnabled)

	g, gctx := errgroup.WithContext(ctx)
	for _, it := range items {
		it := it
		paid := 0
		if in.StockPaymentEnabled {
			paid = in.StockPayment[it.ID]
		}
		g.Go(func() error {
			return s.Q.ApplySettlementItem(gctx, repo.SettlementItemUpdate{
				ID:                it.ID,
				QuantitySold:      it.QuantitySoldPrior + it.QuantitySoldNow,
				QuantityRemaining: it.RemainingAfterSale() - paid,
				UsedAsPayment:     paid,
			})
		})
	}
	if err := g.Wait(); err != nil {
		obs.SettlementsTotal.WithLabelValues("failed", "item_update").Inc()
		return Result{}, common.NewAppError("SETTLEMENT_PARTIAL",
			"settlement aborted before status update; some item updates may have been applied",
			http.StatusInternalServerError, err)
	}

	settledAt := s.now()
	status := totals.Status()
	if err := s.Q.SettleConsignment(ctx, consignmentID, status, settledAt); err != nil {
		obs.SettlementsTotal.WithLabelValues("failed", "status_update").Inc()
		return Result{}, fmt.Errorf("settle consignment: %w", err)
	}

	if totals.TotalSoldValue > 0 {
		if _, err := s.Q.InsertTransaction(ctx, repo.TransactionRow{
			Type:        "income",
			DreCategory: "sales",
			CashImpact:  true,
			Amount:      totals.TotalSoldValue,
			Description: fmt.Sprintf("settlement sales, %s", row.PartnerName),
			OccurredAt:  settledAt,
		}); err != nil {
			return Result{}, fmt.Errorf("record sales income: %w", err)
		}
	}
	if totals.Commission > 0 {
		// Sales income is recorded gross, so the commission has to count
		// against cash for the DRE to net out to what the house keeps.
		if _, err := s.Q.InsertTransaction(ctx, repo.TransactionRow{
			Type:        "expense",
			DreCategory: "operational_cost",
			CashImpact:  true,
			Amount:      totals.Commission,
			Description: fmt.Sprintf("settlement commission %.2f%%, %s: cash %.2f, stock payment %.2f, settled as %s",
				rate, row.PartnerName, totals.CashPayable, totals.StockPaymentValue, status),
			OccurredAt:  settledAt,
		}); err != nil {
			return Result{}, fmt.Errorf("record commission expense: %w", err)
		}
	}

	obs.SettlementsTotal.WithLabelValues(status, "ok").Inc()
	obs.SettlementCommissionValue.Observe(totals.Commission)
	if s.Bus != nil {
		s.Bus.Publish(ctx, events.TopicConsignmentSettled, consignmentID, map[string]any{
			"consignmentId": consignmentID,
			"partnerName":   row.PartnerName,
			"status":        status,
			"totals":        totals,
		})
	}
	return buildResult(consignmentID, items, rate, totals), nil
}
