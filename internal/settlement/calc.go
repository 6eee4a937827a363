// Package settlement computes consignment and event settlement totals:
// gross sold value, partner commission, net payable, and how much of the net
// is covered by stock handed over as payment instead of cash.
package settlement

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ateliemoda/backend-atelie/internal/money"
)

var (
	// ErrSellExceedsRemaining indicates a line sells more units than remain allocated.
	ErrSellExceedsRemaining = errors.New("settlement: quantity sold exceeds remaining allocation")
	// ErrStockPaymentExceedsRemaining indicates a stock-payment entry uses more units than remain after the sale.
	ErrStockPaymentExceedsRemaining = errors.New("settlement: stock payment exceeds remaining quantity")
	// ErrNegativeQuantity indicates a negative sold or stock-payment quantity.
	ErrNegativeQuantity = errors.New("settlement: quantity must not be negative")
	// ErrUnknownLineItem indicates a stock-payment entry that references no line item.
	ErrUnknownLineItem = errors.New("settlement: stock payment references unknown line item")
)

// LineItem is one consignment/event allocation row as read from the store.
// Quantities are immutable inputs here; the service layer writes deltas back.
type LineItem struct {
	ID                    uuid.UUID
	ProductLabel          string
	QuantityAllocated     int
	QuantitySoldPrior     int
	QuantityReturnedPrior int
	QuantitySoldNow       int
	UnitPrice             float64
}

// Remaining reports how many units can still be sold before the new sale.
func (li LineItem) Remaining() int {
	return li.QuantityAllocated - li.QuantitySoldPrior - li.QuantityReturnedPrior
}

// RemainingAfterSale reports how many units are left once the new sale applies.
func (li LineItem) RemainingAfterSale() int {
	return li.Remaining() - li.QuantitySoldNow
}

// StockPayment maps a line item id to the quantity of that item handed over
// as non-cash payment.
type StockPayment map[uuid.UUID]int

// Totals is the computed settlement result. All monetary values are rounded
// to two decimals at every intermediate step, matching the ledger the
// partners reconcile against.
type Totals struct {
	TotalSoldValue     float64 `json:"totalSoldValue"`
	Commission         float64 `json:"commission"`
	NetPayable         float64 `json:"netPayable"`
	StockPaymentValue  float64 `json:"stockPaymentValue"`
	CashPayable        float64 `json:"cashPayable"`
	StockPaymentExcess float64 `json:"stockPaymentExcess"`
}

// Compute derives settlement totals from line items and a commission rate in
// percent (0-100). The function is pure and never validates remaining
// quantities; callers gate commits with Validate.
//
// Rounding happens at both levels: each line value is rounded, and the sum of
// rounded line values is rounded again. Cash payable is floored at zero; any
// stock-payment value beyond the net payable is dropped, not carried forward.
// The drop is deliberate for compatibility with the historical ledger and is
// reported in StockPaymentExcess so the caller can surface it.
func Compute(items []LineItem, commissionRatePercent float64, stockPayment StockPayment, stockPaymentEnabled bool) Totals {
	lineValues := make([]float64, 0, len(items))
	for _, it := range items {
		if it.QuantitySoldNow <= 0 {
			continue
		}
		lineValues = append(lineValues, money.Mul2(float64(it.QuantitySoldNow), it.UnitPrice))
	}
	totalSold := money.Sum2(lineValues...)

	var stockValue float64
	if stockPaymentEnabled && len(stockPayment) > 0 {
		byID := make(map[uuid.UUID]LineItem, len(items))
		for _, it := range items {
			byID[it.ID] = it
		}
		stockLines := make([]float64, 0, len(stockPayment))
		for id, qty := range stockPayment {
			it, ok := byID[id]
			if !ok || qty <= 0 {
				continue
			}
			stockLines = append(stockLines, money.Mul2(float64(qty), it.UnitPrice))
		}
		stockValue = money.Sum2(stockLines...)
	}

	commission := money.Round2(totalSold * commissionRatePercent / 100)
	netPayable := money.Round2(totalSold - commission)

	cash := money.Round2(netPayable - stockValue)
	var excess float64
	if cash < 0 {
		excess = money.Round2(-cash)
		cash = 0
	}

	return Totals{
		TotalSoldValue:     totalSold,
		Commission:         commission,
		NetPayable:         netPayable,
		StockPaymentValue:  stockValue,
		CashPayable:        cash,
		StockPaymentExcess: excess,
	}
}

// Clamp forces sold-now quantities into [0, remaining]. It is the min/max
// input-boundary guard used when recomputing previews as the operator types.
func Clamp(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		if it.QuantitySoldNow < 0 {
			it.QuantitySoldNow = 0
		}
		if remaining := it.Remaining(); it.QuantitySoldNow > remaining {
			it.QuantitySoldNow = remaining
		}
		out[i] = it
	}
	return out
}

// ClampStockPayment forces stock-payment quantities into
// [0, remaining-after-sale] per line item. Entries for unknown items are dropped.
func ClampStockPayment(items []LineItem, sp StockPayment) StockPayment {
	if len(sp) == 0 {
		return StockPayment{}
	}
	byID := make(map[uuid.UUID]LineItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make(StockPayment, len(sp))
	for id, qty := range sp {
		it, ok := byID[id]
		if !ok {
			continue
		}
		if qty < 0 {
			qty = 0
		}
		if left := it.RemainingAfterSale(); qty > left {
			qty = left
		}
		out[id] = qty
	}
	return out
}

// Validate enforces the commit preconditions: no line sells more than its
// remaining allocation and no stock-payment entry exceeds what is left after
// the sale. All violations are reported, joined per line item.
func Validate(items []LineItem, stockPayment StockPayment, stockPaymentEnabled bool) error {
	var errs []error
	byID := make(map[uuid.UUID]LineItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
		if it.QuantitySoldNow < 0 {
			errs = append(errs, fmt.Errorf("%s: %w", it.ProductLabel, ErrNegativeQuantity))
			continue
		}
		if it.QuantitySoldNow > it.Remaining() {
			errs = append(errs, fmt.Errorf("%s: %w (sold %d, remaining %d)",
				it.ProductLabel, ErrSellExceedsRemaining, it.QuantitySoldNow, it.Remaining()))
		}
	}
	if stockPaymentEnabled {
		for id, qty := range stockPayment {
			it, ok := byID[id]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: %w", id, ErrUnknownLineItem))
				continue
			}
			if qty < 0 {
				errs = append(errs, fmt.Errorf("%s: %w", it.ProductLabel, ErrNegativeQuantity))
				continue
			}
			if qty > it.RemainingAfterSale() {
				errs = append(errs, fmt.Errorf("%s: %w (payment %d, remaining after sale %d)",
					it.ProductLabel, ErrStockPaymentExceedsRemaining, qty, it.RemainingAfterSale()))
			}
		}
	}
	return errors.Join(errs...)
}

// Status derives the settled-consignment status from the payment composition.
func (t Totals) Status() string {
	switch {
	case t.StockPaymentValue > 0 && t.CashPayable > 0:
		return "mixed"
	case t.StockPaymentValue > 0:
		return "stock"
	default:
		return "cash"
	}
}
