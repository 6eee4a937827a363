// Package dre builds the income-statement (DRE) breakdown from flat
// financial transactions.
package dre

import (
	"time"

	"github.com/ateliemoda/backend-atelie/internal/money"
)

// TransactionType distinguishes income from expense records.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Category tags a transaction with its DRE bucket. An empty category on an
// expense lands in the "other expenses" bucket.
type Category string

const (
	CategorySales           Category = "sales"
	CategoryOperationalCost Category = "operational_cost"
	CategoryCogs            Category = "cogs"
	CategoryOther           Category = "other"
)

// Transaction is a read-only financial record entering the reducer.
type Transaction struct {
	Type       TransactionType `json:"type"`
	Category   Category        `json:"dreCategory"`
	CashImpact bool            `json:"cashImpact"`
	Amount     float64         `json:"amount"`
	Date       time.Time       `json:"date"`
}

// Breakdown is the derived income statement. It is never persisted.
type Breakdown struct {
	SalesTotal          float64 `json:"salesTotal"`
	OperationalCosts    float64 `json:"operationalCosts"`
	Cogs                float64 `json:"cogs"`
	OtherExpenses       float64 `json:"otherExpenses"`
	TotalExpenses       float64 `json:"totalExpenses"`
	CashResult          float64 `json:"cashResult"`
	ProfitMarginPercent float64 `json:"profitMarginPercent"`
}

// Reduce partitions transactions into DRE buckets and sums them. Bucket rules,
// in this order:
//
//	sales:       dreCategory == sales OR type == income
//	operational: dreCategory == operational_cost AND cashImpact
//	cogs:        dreCategory == cogs
//	other:       type == expense AND dreCategory empty
//
// Every intermediate sum is rounded before being combined further. The profit
// margin is zero whenever sales total is zero or negative, never NaN or Inf.
func Reduce(txs []Transaction) Breakdown {
	var sales, operational, cogs, other []float64
	for _, tx := range txs {
		if tx.Category == CategorySales || tx.Type == TypeIncome {
			sales = append(sales, tx.Amount)
		}
		if tx.Category == CategoryOperationalCost && tx.CashImpact {
			operational = append(operational, tx.Amount)
		}
		if tx.Category == CategoryCogs {
			cogs = append(cogs, tx.Amount)
		}
		if tx.Type == TypeExpense && tx.Category == "" {
			other = append(other, tx.Amount)
		}
	}

	b := Breakdown{
		SalesTotal:       money.Sum2(sales...),
		OperationalCosts: money.Sum2(operational...),
		Cogs:             money.Sum2(cogs...),
		OtherExpenses:    money.Sum2(other...),
	}
	b.TotalExpenses = money.Sum2(b.OperationalCosts, b.Cogs, b.OtherExpenses)
	b.CashResult = money.Round2(b.SalesTotal - b.TotalExpenses)
	if b.SalesTotal > 0 {
		b.ProfitMarginPercent = money.Round2(b.CashResult / b.SalesTotal * 100)
	}
	return b
}
