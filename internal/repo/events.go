package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
)

// DomainEventRow is a persisted domain event.
type DomainEventRow struct {
	ID          uuid.UUID `db:"id"`
	Topic       string    `db:"topic"`
	AggregateID uuid.UUID `db:"aggregate_id"`
	Payload     []byte    `db:"payload"`
	OccurredAt  time.Time `db:"occurred_at"`
}

// InsertDomainEvent persists an event for the current tenant and returns the
// stored row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (DomainEventRow, error) {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return DomainEventRow{}, err
	}
	query, args, err := s.sb.
		Insert("domain_events").
		Columns("id", "tenant_id", "topic", "aggregate_id", "payload", "occurred_at").
		Values(uuid.New(), tid, topic, aggregateID, payload, time.Now()).
		Suffix("RETURNING id, topic, aggregate_id, payload, occurred_at").
		ToSql()
	if err != nil {
		return DomainEventRow{}, fmt.Errorf("build insert domain event: %w", err)
	}
	var row DomainEventRow
	if err := pgxscan.Get(ctx, s.Pool, &row, query, args...); err != nil {
		return DomainEventRow{}, fmt.Errorf("insert domain event: %w", err)
	}
	return row, nil
}
