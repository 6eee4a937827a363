package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditLogRow records who confirmed a settlement or reconciliation and how.
type AuditLogRow struct {
	ID           uuid.UUID
	ActorKind    string
	ActorUserID  *string
	Action       string
	ResourceType string
	ResourceID   *string
	Status       int
	Metadata     []byte
	CreatedAt    time.Time
}

// InsertAuditLog persists one audit entry for the current tenant.
func (s *Store) InsertAuditLog(ctx context.Context, row AuditLogRow) error {
	tid, err := s.tenantID(ctx)
	if err != nil {
		return err
	}
	id := row.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query, args, err := s.sb.
		Insert("audit_logs").
		Columns("id", "tenant_id", "actor_kind", "actor_user_id", "action",
			"resource_type", "resource_id", "status", "metadata", "created_at").
		Values(id, tid, row.ActorKind, row.ActorUserID, row.Action,
			row.ResourceType, row.ResourceID, row.Status, row.Metadata, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit log: %w", err)
	}
	if _, err := s.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
