package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
)

// TransactionRow is a financial transaction as stored. DreCategory may be
// empty; the DRE reducer treats empty as uncategorised.
type TransactionRow struct {
	ID          uuid.UUID `db:"id"`
	Type        string    `db:"type"`
	DreCategory string    `db:"dre_category"`
	CashImpact  bool      `db:"cash_impact"`
	Amount      float64   `db:"amount"`
	Description string    `db:"description"`
	OccurredAt  time.Time `db:"occurred_at"`
}

// TransactionFilter narrows transaction listings. Zero values mean "no filter".
type TransactionFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	Category string
}

// ListTransactions returns the tenant's transactions matching the filter,
// newest first.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]TransactionRow, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}
	b := s.sb.
		Select("id", "type", "dre_category", "cash_impact", "amount", "description", "occurred_at").
		From("transactions").
		Where(squirrel.Eq{"tenant_id": tid}).
		OrderBy("occurred_at DESC")
	if !f.From.IsZero() {
		b = b.Where(squirrel.GtOrEq{"occurred_at": f.From})
	}
	if !f.To.IsZero() {
		b = b.Where(squirrel.Lt{"occurred_at": f.To})
	}
	if f.Type != "" {
		b = b.Where(squirrel.Eq{"type": f.Type})
	}
	if f.Category != "" {
		b = b.Where(squirrel.Eq{"dre_category": f.Category})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transactions: %w", err)
	}
	var rows []TransactionRow
	if err := pgxscan.Select(ctx, s.Pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return rows, nil
}

// InsertTransaction records a new financial transaction (e.g. the commission
// expense created by a settlement) and returns its id.
func (s *Store) InsertTransaction(ctx context.Context, row TransactionRow) (uuid.UUID, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id := row.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	occurredAt := row.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	query, args, err := s.sb.
		Insert("transactions").
		Columns("id", "tenant_id", "type", "dre_category", "cash_impact", "amount", "description", "occurred_at").
		Values(id, tid, row.Type, row.DreCategory, row.CashImpact, row.Amount, row.Description, occurredAt).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build insert transaction: %w", err)
	}
	if _, err := s.Pool.Exec(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// ProductRow is a catalogue/inventory item.
type ProductRow struct {
	ID            uuid.UUID `db:"id"`
	Label         string    `db:"label"`
	Sku           string    `db:"sku"`
	Category      string    `db:"category"`
	UnitPrice     float64   `db:"unit_price"`
	StockQuantity int       `db:"stock_quantity"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// ListProducts returns a page of the tenant's products ordered by label.
func (s *Store) ListProducts(ctx context.Context, limit, offset int) ([]ProductRow, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}
	query, args, err := s.sb.
		Select("id", "label", "sku", "category", "unit_price", "stock_quantity", "updated_at").
		From("products").
		Where(squirrel.Eq{"tenant_id": tid}).
		OrderBy("label").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products: %w", err)
	}
	var rows []ProductRow
	if err := pgxscan.Select(ctx, s.Pool, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return rows, nil
}
