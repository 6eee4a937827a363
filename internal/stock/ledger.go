// Package stock fronts the inventory ledger kept in Postgres. Mutations go
// through SQL functions so quantity math and reservation bookkeeping stay in
// one place regardless of which service touches stock.
package stock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

// Ledger mutates stock levels and reservations.
type Ledger interface {
	// Allocate reserves qty units of an inventory item for an event and
	// returns the allocation id.
	Allocate(ctx context.Context, eventID, inventoryID uuid.UUID, qty int) (uuid.UUID, error)
	// Return releases qty units of an allocation back into sellable stock.
	Return(ctx context.Context, allocationID uuid.UUID, qty int) error
	// ExpireReservations releases every reservation past its hold deadline
	// and reports how many were released.
	ExpireReservations(ctx context.Context) (int, error)
}

// PGLedger implements Ledger on top of the erp_* SQL functions.
type PGLedger struct {
	Pool *pgxpool.Pool
}

// NewPGLedger builds a ledger over the given pool.
func NewPGLedger(pool *pgxpool.Pool) *PGLedger {
	return &PGLedger{Pool: pool}
}

func (l *PGLedger) Allocate(ctx context.Context, eventID, inventoryID uuid.UUID, qty int) (uuid.UUID, error) {
	tid, err := tenant.UUIDFromContext(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	var allocationID uuid.UUID
	err = l.Pool.QueryRow(ctx,
		`SELECT erp_allocate_stock($1, $2, $3, $4)`,
		tid, eventID, inventoryID, qty,
	).Scan(&allocationID)
	if err != nil {
		obs.LedgerRPCTotal.WithLabelValues("allocate", "error").Inc()
		return uuid.Nil, fmt.Errorf("allocate stock: %w", err)
	}
	obs.LedgerRPCTotal.WithLabelValues("allocate", "ok").Inc()
	return allocationID, nil
}

func (l *PGLedger) Return(ctx context.Context, allocationID uuid.UUID, qty int) error {
	tid, err := tenant.UUIDFromContext(ctx)
	if err != nil {
		return err
	}
	if _, err := l.Pool.Exec(ctx,
		`SELECT erp_return_stock($1, $2, $3)`,
		tid, allocationID, qty,
	); err != nil {
		obs.LedgerRPCTotal.WithLabelValues("return", "error").Inc()
		return fmt.Errorf("return stock %s: %w", allocationID, err)
	}
	obs.LedgerRPCTotal.WithLabelValues("return", "ok").Inc()
	return nil
}

func (l *PGLedger) ExpireReservations(ctx context.Context) (int, error) {
	tid, err := tenant.UUIDFromContext(ctx)
	if err != nil {
		return 0, err
	}
	var released int
	err = l.Pool.QueryRow(ctx,
		`SELECT erp_expire_reservations($1)`,
		tid,
	).Scan(&released)
	if err != nil {
		obs.LedgerRPCTotal.WithLabelValues("expire", "error").Inc()
		return 0, fmt.Errorf("expire reservations: %w", err)
	}
	obs.LedgerRPCTotal.WithLabelValues("expire", "ok").Inc()
	if released > 0 {
		obs.ReservationsExpiredTotal.Add(float64(released))
	}
	return released, nil
}
