package settlement

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestComputeTwoLines(t *testing.T) {
	items := []LineItem{
		{ID: uuid.New(), ProductLabel: "vestido midi", QuantityAllocated: 5, QuantitySoldNow: 3, UnitPrice: 50.00},
		{ID: uuid.New(), ProductLabel: "blusa seda", QuantityAllocated: 4, QuantitySoldNow: 2, UnitPrice: 30.00},
	}
	totals := Compute(items, 40, nil, false)
	if totals.TotalSoldValue != 210.00 {
		t.Fatalf("total sold: expected 210.00, got %v", totals.TotalSoldValue)
	}
	if totals.Commission != 84.00 {
		t.Fatalf("commission: expected 84.00, got %v", totals.Commission)
	}
	if totals.NetPayable != 126.00 {
		t.Fatalf("net payable: expected 126.00, got %v", totals.NetPayable)
	}
	if totals.CashPayable != 126.00 {
		t.Fatalf("cash payable: expected 126.00, got %v", totals.CashPayable)
	}
	if totals.Status() != "cash" {
		t.Fatalf("status: expected cash, got %s", totals.Status())
	}
}

func TestComputeStockPaymentOverCoversNet(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	items := []LineItem{
		{ID: first, QuantityAllocated: 10, QuantitySoldNow: 3, UnitPrice: 50.00},
		{ID: second, QuantityAllocated: 10, QuantitySoldNow: 2, UnitPrice: 30.00},
	}
	sp := StockPayment{first: 3} // 150.00 in stock against 126.00 net
	totals := Compute(items, 40, sp, true)
	if totals.StockPaymentValue != 150.00 {
		t.Fatalf("stock payment value: expected 150.00, got %v", totals.StockPaymentValue)
	}
	if totals.CashPayable != 0 {
		t.Fatalf("cash payable: expected 0, got %v", totals.CashPayable)
	}
	if totals.StockPaymentExcess != 24.00 {
		t.Fatalf("excess: expected 24.00, got %v", totals.StockPaymentExcess)
	}
	if totals.Status() != "stock" {
		t.Fatalf("status: expected stock, got %s", totals.Status())
	}
}

func TestComputeStockPaymentDisabled(t *testing.T) {
	id := uuid.New()
	items := []LineItem{{ID: id, QuantityAllocated: 5, QuantitySoldNow: 1, UnitPrice: 99.90}}
	totals := Compute(items, 40, StockPayment{id: 2}, false)
	if totals.StockPaymentValue != 0 {
		t.Fatalf("expected stock payment ignored when disabled, got %v", totals.StockPaymentValue)
	}
}

func TestComputeCommissionBounds(t *testing.T) {
	items := []LineItem{
		{ID: uuid.New(), QuantityAllocated: 9, QuantitySoldNow: 7, UnitPrice: 19.99},
		{ID: uuid.New(), QuantityAllocated: 9, QuantitySoldNow: 3, UnitPrice: 0.05},
	}
	for _, rate := range []float64{0, 0.5, 13.37, 40, 99.99, 100} {
		totals := Compute(items, rate, nil, false)
		if totals.Commission < 0 {
			t.Fatalf("rate %v: commission below zero: %v", rate, totals.Commission)
		}
		if totals.Commission > totals.TotalSoldValue+0.01 {
			t.Fatalf("rate %v: commission %v exceeds total sold %v", rate, totals.Commission, totals.TotalSoldValue)
		}
	}
}

func TestComputeChainedRounding(t *testing.T) {
	// Each of the 3 lines rounds to 0.33; the reference ledger sums rounded
	// line values (0.99), not the unrounded products (0.9999).
	items := []LineItem{
		{ID: uuid.New(), QuantityAllocated: 1, QuantitySoldNow: 1, UnitPrice: 0.333},
		{ID: uuid.New(), QuantityAllocated: 1, QuantitySoldNow: 1, UnitPrice: 0.333},
		{ID: uuid.New(), QuantityAllocated: 1, QuantitySoldNow: 1, UnitPrice: 0.333},
	}
	totals := Compute(items, 0, nil, false)
	if totals.TotalSoldValue != 0.99 {
		t.Fatalf("expected per-line rounding before the sum (0.99), got %v", totals.TotalSoldValue)
	}
}

func TestComputeIgnoresZeroSoldLines(t *testing.T) {
	items := []LineItem{
		{ID: uuid.New(), QuantityAllocated: 5, QuantitySoldNow: 0, UnitPrice: 50},
		{ID: uuid.New(), QuantityAllocated: 5, QuantitySoldNow: 2, UnitPrice: 10},
	}
	totals := Compute(items, 40, nil, false)
	if totals.TotalSoldValue != 20.00 {
		t.Fatalf("expected 20.00, got %v", totals.TotalSoldValue)
	}
}

func TestValidateSellExceedsRemaining(t *testing.T) {
	items := []LineItem{{
		ID: uuid.New(), ProductLabel: "saia longa",
		QuantityAllocated: 10, QuantitySoldPrior: 4, QuantityReturnedPrior: 3,
		QuantitySoldNow: 4, UnitPrice: 10,
	}}
	err := Validate(items, nil, false)
	if !errors.Is(err, ErrSellExceedsRemaining) {
		t.Fatalf("expected ErrSellExceedsRemaining, got %v", err)
	}
}

func TestValidateStockPayment(t *testing.T) {
	id := uuid.New()
	items := []LineItem{{ID: id, QuantityAllocated: 5, QuantitySoldNow: 3, UnitPrice: 10}}

	if err := Validate(items, StockPayment{id: 2}, true); err != nil {
		t.Fatalf("expected valid stock payment, got %v", err)
	}
	if err := Validate(items, StockPayment{id: 3}, true); !errors.Is(err, ErrStockPaymentExceedsRemaining) {
		t.Fatalf("expected ErrStockPaymentExceedsRemaining, got %v", err)
	}
	if err := Validate(items, StockPayment{uuid.New(): 1}, true); !errors.Is(err, ErrUnknownLineItem) {
		t.Fatalf("expected ErrUnknownLineItem, got %v", err)
	}
	// Disabled stock payment skips those checks entirely.
	if err := Validate(items, StockPayment{id: 99}, false); err != nil {
		t.Fatalf("expected nil when stock payment disabled, got %v", err)
	}
}

func TestClamp(t *testing.T) {
	id := uuid.New()
	items := []LineItem{{ID: id, QuantityAllocated: 5, QuantitySoldPrior: 1, QuantitySoldNow: 99, UnitPrice: 10}}
	clamped := Clamp(items)
	if clamped[0].QuantitySoldNow != 4 {
		t.Fatalf("expected sold-now clamped to 4, got %d", clamped[0].QuantitySoldNow)
	}
	sp := ClampStockPayment(clamped, StockPayment{id: 10, uuid.New(): 3})
	if len(sp) != 1 || sp[id] != 0 {
		t.Fatalf("expected stock payment clamped to 0 and unknown ids dropped, got %v", sp)
	}
}
