package settlement

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	m.Run()
}

type stubQuerier struct {
	mu sync.Mutex

	consignment repo.ConsignmentRow
	items       []repo.LineItemRow

	applied     []repo.SettlementItemUpdate
	applyErrFor uuid.UUID

	settledStatus string
	settledCalled bool

	transactions []repo.TransactionRow
}

func (q *stubQuerier) GetConsignment(ctx context.Context, id uuid.UUID) (repo.ConsignmentRow, error) {
	if q.consignment.ID == uuid.Nil {
		return repo.ConsignmentRow{}, repo.ErrNotFound
	}
	return q.consignment, nil
}

func (q *stubQuerier) ListLineItems(ctx context.Context, consignmentID uuid.UUID) ([]repo.LineItemRow, error) {
	return q.items, nil
}

func (q *stubQuerier) ApplySettlementItem(ctx context.Context, upd repo.SettlementItemUpdate) error {
	if upd.ID == q.applyErrFor {
		return errors.New("write failed")
	}
	q.mu.Lock()
	q.applied = append(q.applied, upd)
	q.mu.Unlock()
	return nil
}

func (q *stubQuerier) SettleConsignment(ctx context.Context, id uuid.UUID, status string, settledAt time.Time) error {
	q.settledCalled = true
	q.settledStatus = status
	return nil
}

func (q *stubQuerier) InsertTransaction(ctx context.Context, row repo.TransactionRow) (uuid.UUID, error) {
	q.transactions = append(q.transactions, row)
	return uuid.New(), nil
}

func newStub(rate float64, items ...repo.LineItemRow) *stubQuerier {
	return &stubQuerier{
		consignment: repo.ConsignmentRow{
			ID:                uuid.New(),
			Kind:              "consignment",
			PartnerName:       "Loja Central",
			CommissionPercent: rate,
			Status:            "open",
		},
		items: items,
	}
}

func item(label string, allocated, soldPrior int, price float64) repo.LineItemRow {
	return repo.LineItemRow{
		ID:                uuid.New(),
		ProductLabel:      label,
		UnitPrice:         price,
		QuantityAllocated: allocated,
		QuantitySold:      soldPrior,
	}
}

func TestSettleHappyPath(t *testing.T) {
	a := item("vestido midi", 10, 0, 70)
	q := newStub(40, a)
	svc := &Service{Q: q, Now: func() time.Time { return time.Unix(1700000000, 0) }}

	result, err := svc.Settle(context.Background(), q.consignment.ID, Input{
		Items: []ItemInput{{ID: a.ID, QuantitySold: 3}},
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if result.Totals.TotalSoldValue != 210 || result.Totals.Commission != 84 || result.Totals.NetPayable != 126 {
		t.Fatalf("unexpected totals: %+v", result.Totals)
	}
	if !q.settledCalled || q.settledStatus != "cash" {
		t.Fatalf("expected status write cash, got called=%v status=%q", q.settledCalled, q.settledStatus)
	}
	if len(q.applied) != 1 {
		t.Fatalf("expected one item update, got %d", len(q.applied))
	}
	upd := q.applied[0]
	if upd.QuantitySold != 3 || upd.QuantityRemaining != 7 || upd.UsedAsPayment != 0 {
		t.Fatalf("unexpected item update: %+v", upd)
	}
	if len(q.transactions) != 2 {
		t.Fatalf("expected sales income and commission expense, got %d transactions", len(q.transactions))
	}
	if q.transactions[0].Type != "income" || q.transactions[0].Amount != 210 {
		t.Fatalf("unexpected income transaction: %+v", q.transactions[0])
	}
	if q.transactions[1].Type != "expense" || q.transactions[1].Amount != 84 {
		t.Fatalf("unexpected expense transaction: %+v", q.transactions[1])
	}
	// Income is gross, so the commission must weigh on the cash result.
	if !q.transactions[1].CashImpact || q.transactions[1].DreCategory != "operational_cost" {
		t.Fatalf("commission must be a cash operational cost: %+v", q.transactions[1])
	}
}

func TestSettleCommissionNoteRecordsComposition(t *testing.T) {
	a := item("saia longa", 10, 0, 50)
	q := newStub(40, a)
	svc := &Service{Q: q}

	_, err := svc.Settle(context.Background(), q.consignment.ID, Input{
		Items:               []ItemInput{{ID: a.ID, QuantitySold: 4}},
		StockPayment:        map[uuid.UUID]int{a.ID: 1},
		StockPaymentEnabled: true,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	// 200 sold, 80 commission, 120 net, 50 in stock, 70 in cash.
	if len(q.transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(q.transactions))
	}
	note := q.transactions[1].Description
	for _, want := range []string{"cash 70.00", "stock payment 50.00", "settled as mixed"} {
		if !strings.Contains(note, want) {
			t.Fatalf("commission note %q missing %q", note, want)
		}
	}
}

func TestSettleStockPaymentExcessClampsCash(t *testing.T) {
	a := item("saia longa", 10, 0, 50)
	q := newStub(40, a)
	svc := &Service{Q: q}

	result, err := svc.Settle(context.Background(), q.consignment.ID, Input{
		Items:               []ItemInput{{ID: a.ID, QuantitySold: 4}},
		StockPayment:        map[uuid.UUID]int{a.ID: 3},
		StockPaymentEnabled: true,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	// 200 sold, 80 commission, 120 net, 150 of stock handed over.
	if result.Totals.CashPayable != 0 {
		t.Fatalf("cash payable should clamp to zero, got %v", result.Totals.CashPayable)
	}
	if result.Totals.StockPaymentExcess != 30 {
		t.Fatalf("expected excess 30, got %v", result.Totals.StockPaymentExcess)
	}
	if q.settledStatus != "stock" {
		t.Fatalf("expected stock status, got %q", q.settledStatus)
	}
	if upd := q.applied[0]; upd.UsedAsPayment != 3 || upd.QuantityRemaining != 3 {
		t.Fatalf("unexpected item update: %+v", upd)
	}
}

func TestSettleRejectsOverselling(t *testing.T) {
	a := item("blusa", 2, 0, 30)
	q := newStub(40, a)
	svc := &Service{Q: q}

	_, err := svc.Settle(context.Background(), q.consignment.ID, Input{
		Items: []ItemInput{{ID: a.ID, QuantitySold: 5}},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrSellExceedsRemaining) {
		t.Fatalf("expected ErrSellExceedsRemaining, got %v", err)
	}
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 app error, got %v", err)
	}
	if q.settledCalled || len(q.applied) != 0 {
		t.Fatal("nothing should be written on validation failure")
	}
}

func TestSettleAbortsStatusWriteOnItemFailure(t *testing.T) {
	a := item("vestido", 5, 0, 40)
	b := item("calca", 5, 0, 60)
	q := newStub(40, a, b)
	q.applyErrFor = b.ID
	svc := &Service{Q: q}

	_, err := svc.Settle(context.Background(), q.consignment.ID, Input{
		Items: []ItemInput{{ID: a.ID, QuantitySold: 1}, {ID: b.ID, QuantitySold: 1}},
	})
	if err == nil {
		t.Fatal("expected commit failure")
	}
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.Code != "SETTLEMENT_PARTIAL" {
		t.Fatalf("expected SETTLEMENT_PARTIAL, got %v", err)
	}
	if q.settledCalled {
		t.Fatal("status must not be written when an item update fails")
	}
	if len(q.transactions) != 0 {
		t.Fatal("no transactions should be recorded on a failed commit")
	}
}

func TestSettleRejectsAlreadySettled(t *testing.T) {
	a := item("vestido", 5, 0, 40)
	q := newStub(40, a)
	q.consignment.Status = "cash"
	svc := &Service{Q: q}

	_, err := svc.Settle(context.Background(), q.consignment.ID, Input{})
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected 409 conflict, got %v", err)
	}
}

func TestPreviewClampsInsteadOfRejecting(t *testing.T) {
	a := item("blusa", 2, 0, 30)
	q := newStub(40, a)
	svc := &Service{Q: q}

	result, err := svc.Preview(context.Background(), q.consignment.ID, Input{
		Items: []ItemInput{{ID: a.ID, QuantitySold: 99}},
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if result.Lines[0].QuantitySold != 2 {
		t.Fatalf("expected clamp to 2, got %d", result.Lines[0].QuantitySold)
	}
	if result.Totals.TotalSoldValue != 60 {
		t.Fatalf("expected total 60, got %v", result.Totals.TotalSoldValue)
	}
	if q.settledCalled || len(q.applied) != 0 {
		t.Fatal("preview must not write")
	}
}

func TestSettleUsesRequestCommissionOverride(t *testing.T) {
	a := item("vestido", 10, 0, 100)
	q := newStub(40, a)
	svc := &Service{Q: q}

	override := 25.0
	result, err := svc.Settle(context.Background(), q.consignment.ID, Input{
		Items:             []ItemInput{{ID: a.ID, QuantitySold: 1}},
		CommissionPercent: &override,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if result.Totals.Commission != 25 {
		t.Fatalf("expected commission 25, got %v", result.Totals.Commission)
	}
}
