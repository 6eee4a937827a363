package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/events"
	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/stock"
)

// Querier defines the store access required by reconciliation operations.
type Querier interface {
	GetConsignment(ctx context.Context, id uuid.UUID) (repo.ConsignmentRow, error)
	ListLineItems(ctx context.Context, consignmentID uuid.UUID) ([]repo.LineItemRow, error)
	ApplyCountItem(ctx context.Context, upd repo.CountItemUpdate) error
	MarkStockAudited(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Service drives the blind-count wizard. Sessions live in the session store
// until confirmed; confirmation writes divergences to Postgres, returns the
// counted stock to the ledger, and discards the session.
type Service struct {
	Q        Querier
	Sessions SessionStore
	Ledger   stock.Ledger
	Bus      *events.Bus
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SessionView is what the API exposes for a session. Expected quantities are
// already redacted by Session.View when the count is still blind.
type SessionView struct {
	EventID        string  `json:"eventId"`
	State          State   `json:"state"`
	RevealExpected bool    `json:"revealExpected"`
	Items          []Count `json:"items"`
	Summary        Summary `json:"summary"`
}

func view(sess *Session) SessionView {
	return SessionView{
		EventID:        sess.EventID,
		State:          sess.State,
		RevealExpected: sess.RevealExpected,
		Items:          sess.View(),
		Summary:        sess.Summary(),
	}
}

// Start opens a counting session over the event's outstanding allocations.
// Expected return is what was allocated minus everything already accounted
// for: units sold, units returned earlier, and units handed over as stock
// payment. An existing session is resumed, not replaced.
func (s *Service) Start(ctx context.Context, eventID uuid.UUID) (SessionView, error) {
	if existing, err := s.Sessions.Get(ctx, eventID.String()); err == nil {
		return view(existing), nil
	} else if !errors.Is(err, ErrSessionNotFound) {
		return SessionView{}, err
	}

	event, err := s.Q.GetConsignment(ctx, eventID)
	if err != nil {
		return SessionView{}, err
	}
	if event.Kind != "event" {
		return SessionView{}, common.NewAppError("NOT_AN_EVENT",
			"blind count applies to events only", http.StatusUnprocessableEntity, nil)
	}
	rows, err := s.Q.ListLineItems(ctx, eventID)
	if err != nil {
		return SessionView{}, err
	}
	items := make([]Count, 0, len(rows))
	for _, r := range rows {
		expected := r.QuantityAllocated - r.QuantitySold - r.QuantityReturned - r.UsedAsPayment
		allocationID := ""
		if r.AllocationID != nil {
			allocationID = r.AllocationID.String()
		}
		items = append(items, Count{
			ID:               r.ID.String(),
			AllocationID:     allocationID,
			ProductLabel:     r.ProductLabel,
			ExpectedQuantity: &expected,
		})
	}
	sess := NewSession(eventID.String(), items)
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return SessionView{}, err
	}
	obs.ReconcileSessionsTotal.WithLabelValues("start", "ok").Inc()
	return view(sess), nil
}

// Get returns the current session state.
func (s *Service) Get(ctx context.Context, eventID uuid.UUID) (SessionView, error) {
	sess, err := s.Sessions.Get(ctx, eventID.String())
	if err != nil {
		return SessionView{}, err
	}
	return view(sess), nil
}

// mutate loads the session, applies fn, and saves it back.
func (s *Service) mutate(ctx context.Context, eventID uuid.UUID, fn func(*Session) error) (SessionView, error) {
	sess, err := s.Sessions.Get(ctx, eventID.String())
	if err != nil {
		return SessionView{}, err
	}
	if err := fn(sess); err != nil {
		return SessionView{}, asAppError(err)
	}
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return SessionView{}, err
	}
	return view(sess), nil
}

// RecordCount stores one physical count.
func (s *Service) RecordCount(ctx context.Context, eventID uuid.UUID, itemID string, qty int) (SessionView, error) {
	return s.mutate(ctx, eventID, func(sess *Session) error {
		return sess.SetCount(itemID, qty)
	})
}

// RecordNotes attaches divergence notes to one item.
func (s *Service) RecordNotes(ctx context.Context, eventID uuid.UUID, itemID, notes string) (SessionView, error) {
	return s.mutate(ctx, eventID, func(sess *Session) error {
		return sess.SetNotes(itemID, notes)
	})
}

// Reveal toggles whether expected quantities are visible during counting.
func (s *Service) Reveal(ctx context.Context, eventID uuid.UUID, reveal bool) (SessionView, error) {
	return s.mutate(ctx, eventID, func(sess *Session) error {
		sess.RevealExpected = reveal
		return nil
	})
}

// BeginReview advances counting to review once every item has a count.
func (s *Service) BeginReview(ctx context.Context, eventID uuid.UUID) (SessionView, error) {
	v, err := s.mutate(ctx, eventID, func(sess *Session) error {
		return sess.BeginReview()
	})
	if err == nil {
		obs.ReconcileSessionsTotal.WithLabelValues("review", "ok").Inc()
	}
	return v, err
}

// Reopen returns a session in review to counting.
func (s *Service) Reopen(ctx context.Context, eventID uuid.UUID) (SessionView, error) {
	return s.mutate(ctx, eventID, func(sess *Session) error {
		return sess.Reopen()
	})
}

// Confirm commits the reviewed counts. Per-item divergence writes and ledger
// returns run concurrently; any failure aborts before the audit stamp so the
// confirmation can be retried. On success the session is deleted.
func (s *Service) Confirm(ctx context.Context, eventID uuid.UUID) (SessionView, error) {
	sess, err := s.Sessions.Get(ctx, eventID.String())
	if err != nil {
		return SessionView{}, err
	}
	if err := sess.Confirm(); err != nil {
		obs.ReconcileSessionsTotal.WithLabelValues("confirm", "rejected").Inc()
		return SessionView{}, asAppError(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, it := range sess.Items {
		it := it
		id, err := uuid.Parse(it.ID)
		if err != nil {
			return SessionView{}, fmt.Errorf("parse line item id %q: %w", it.ID, err)
		}
		// Stock goes back to the reservation, not the line item. Lines that
		// were never reserved have no allocation and skip the ledger.
		allocationID := uuid.Nil
		if it.AllocationID != "" {
			allocationID, err = uuid.Parse(it.AllocationID)
			if err != nil {
				return SessionView{}, fmt.Errorf("parse allocation id %q: %w", it.AllocationID, err)
			}
		}
		counted := 0
		if it.CountedQuantity != nil {
			counted = *it.CountedQuantity
		}
		divergence := it.Divergence()
		g.Go(func() error {
			if err := s.Q.ApplyCountItem(gctx, repo.CountItemUpdate{
				ID:              id,
				CountedReturn:   counted,
				Divergence:      divergence,
				DivergenceNotes: it.Notes,
			}); err != nil {
				return err
			}
			if s.Ledger != nil && counted > 0 && allocationID != uuid.Nil {
				return s.Ledger.Return(gctx, allocationID, counted)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		obs.ReconcileSessionsTotal.WithLabelValues("confirm", "failed").Inc()
		return SessionView{}, common.NewAppError("RECONCILE_PARTIAL",
			"confirmation aborted before audit stamp; some item writes may have been applied",
			http.StatusInternalServerError, err)
	}

	auditedAt := s.now()
	if err := s.Q.MarkStockAudited(ctx, eventID, auditedAt); err != nil {
		obs.ReconcileSessionsTotal.WithLabelValues("confirm", "failed").Inc()
		return SessionView{}, fmt.Errorf("mark stock audited: %w", err)
	}
	if err := s.Sessions.Delete(ctx, eventID.String()); err != nil {
		return SessionView{}, err
	}

	summary := sess.Summary()
	for _, it := range sess.Items {
		if d := it.Divergence(); d != 0 {
			obs.DivergenceItemsTotal.WithLabelValues(Badge(d)).Inc()
		}
	}
	obs.ReconcileSessionsTotal.WithLabelValues("confirm", "ok").Inc()
	if s.Bus != nil {
		s.Bus.Publish(ctx, events.TopicEventReconciled, eventID, map[string]any{
			"eventId": eventID,
			"summary": summary,
		})
	}
	return view(sess), nil
}

// asAppError maps domain sentinels onto HTTP-facing app errors so handlers
// stay thin.
func asAppError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_TRANSITION", err.Error(), http.StatusConflict, err)
	case errors.Is(err, ErrIncompleteCount):
		return common.NewAppError("INCOMPLETE_COUNT", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrMissingDivergenceNotes):
		return common.NewAppError("DIVERGENCE_NOTES_REQUIRED", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrNegativeCount):
		return common.NewAppError("NEGATIVE_COUNT", err.Error(), http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrUnknownItem):
		return common.NewAppError("UNKNOWN_ITEM", err.Error(), http.StatusNotFound, err)
	default:
		return err
	}
}
