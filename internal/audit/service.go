// Package audit keeps the trail of who settled and reconciled what. Entries
// are written directly by the HTTP layer for mutating requests and from the
// event bus for domain milestones.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/events"
	"github.com/ateliemoda/backend-atelie/internal/repo"
)

// Recorder persists audit entries. *repo.Store satisfies it.
type Recorder interface {
	InsertAuditLog(ctx context.Context, row repo.AuditLogRow) error
}

// Service records audit entries. Failures are logged, never propagated; an
// audit hiccup must not fail the business operation it describes.
type Service struct {
	Recorder Recorder
	Log      zerolog.Logger
}

// Entry is one audit record before persistence.
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	Status       int
	Metadata     any
}

// Record persists one entry, attributing it to the user in the context when
// present.
func (s *Service) Record(ctx context.Context, e Entry) {
	if s == nil || s.Recorder == nil {
		return
	}
	row := repo.AuditLogRow{
		ActorKind:    "system",
		Action:       e.Action,
		ResourceType: e.ResourceType,
		Status:       e.Status,
	}
	if userID, ok := common.UserID(ctx); ok {
		row.ActorKind = "user"
		row.ActorUserID = &userID
	}
	if e.ResourceID != "" {
		id := e.ResourceID
		row.ResourceID = &id
	}
	if e.Metadata != nil {
		if data, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = data
		}
	}
	if err := s.Recorder.InsertAuditLog(ctx, row); err != nil {
		s.Log.Error().Err(err).Str("action", e.Action).Msg("audit write failed")
	}
}

// SubscribeDomainEvents wires the service onto the bus so settlement and
// reconciliation milestones leave a trail even when triggered off-request.
func (s *Service) SubscribeDomainEvents(bus *events.Bus) {
	handler := func(action string) events.Handler {
		return func(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) {
			var meta any
			_ = json.Unmarshal(payload, &meta)
			s.Record(ctx, Entry{
				Action:       action,
				ResourceType: "consignment",
				ResourceID:   aggregateID.String(),
				Status:       200,
				Metadata:     meta,
			})
		}
	}
	bus.Subscribe(events.TopicConsignmentSettled, handler("consignment.settle"))
	bus.Subscribe(events.TopicEventReconciled, handler("event.reconcile"))
}
