// Package reconcile implements the blind-count reconciliation of stock
// returned from an event. The operator counts physical pieces without seeing
// the expected quantities, then reviews the computed divergences and confirms.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// State is the explicit wizard state carried by a reconciliation session.
type State string

const (
	// StateCounting accepts counted quantities per item.
	StateCounting State = "counting"
	// StateReview presents divergences for operator review.
	StateReview State = "review"
	// StateConfirmed is terminal; the session is committed and discarded.
	StateConfirmed State = "confirmed"
)

var (
	// ErrIncompleteCount is returned when review is requested before every item has an explicit count.
	ErrIncompleteCount = errors.New("reconcile: every item needs an explicit count before review")
	// ErrMissingDivergenceNotes is returned when confirming with a divergent item lacking notes.
	ErrMissingDivergenceNotes = errors.New("reconcile: divergent items require notes")
	// ErrInvalidTransition is returned for operations not allowed in the current state.
	ErrInvalidTransition = errors.New("reconcile: invalid state transition")
	// ErrUnknownItem is returned when a count targets an id outside the session.
	ErrUnknownItem = errors.New("reconcile: unknown allocation")
	// ErrNegativeCount rejects negative physical counts.
	ErrNegativeCount = errors.New("reconcile: counted quantity must not be negative")
)

// Count is one allocation row under reconciliation. CountedQuantity is nil
// until the operator records a count; zero is a valid count and distinct from
// "not yet counted". ExpectedQuantity is nil only in redacted views, never in
// the stored session. AllocationID links the line to its stock reservation
// and is empty for lines that were never reserved against inventory.
type Count struct {
	ID               string `json:"id"`
	AllocationID     string `json:"allocationId,omitempty"`
	ProductLabel     string `json:"productLabel"`
	ExpectedQuantity *int   `json:"expectedQuantity,omitempty"`
	CountedQuantity  *int   `json:"countedQuantity"`
	Notes            string `json:"notes"`
}

// Divergence is expected minus counted: positive means shortage (falta),
// negative means overage (sobra). Uncounted items report zero.
func (c Count) Divergence() int {
	if c.CountedQuantity == nil || c.ExpectedQuantity == nil {
		return 0
	}
	return *c.ExpectedQuantity - *c.CountedQuantity
}

// Badge classifies a divergence for display.
func Badge(divergence int) string {
	switch {
	case divergence > 0:
		return "shortage"
	case divergence < 0:
		return "overage"
	default:
		return "reconciled"
	}
}

// Summary aggregates divergences across the whole session.
type Summary struct {
	TotalDivergence int  `json:"totalDivergence"`
	HasDivergence   bool `json:"hasDivergence"`
}

// Summarize recomputes aggregate divergence from scratch. There is no
// incremental state; every count change re-derives the summary.
func Summarize(items []Count) Summary {
	var total int
	for _, it := range items {
		d := it.Divergence()
		if d < 0 {
			d = -d
		}
		total += d
	}
	return Summary{TotalDivergence: total, HasDivergence: total > 0}
}

// Session is one reconciliation run for an event's returned stock. Expected
// quantities stay hidden while counting (RevealExpected defaults to false) so
// the physical count is not anchored by the system's numbers.
type Session struct {
	EventID        string  `json:"eventId"`
	State          State   `json:"state"`
	Items          []Count `json:"items"`
	RevealExpected bool    `json:"revealExpected"`
}

// NewSession starts a counting session over the provided allocations.
func NewSession(eventID string, items []Count) *Session {
	copied := make([]Count, len(items))
	copy(copied, items)
	return &Session{EventID: eventID, State: StateCounting, Items: copied}
}

// SetCount records a physical count for one allocation. Allowed only while
// counting.
func (s *Session) SetCount(id string, qty int) error {
	if s.State != StateCounting {
		return fmt.Errorf("%w: set count in %s", ErrInvalidTransition, s.State)
	}
	if qty < 0 {
		return ErrNegativeCount
	}
	for i := range s.Items {
		if s.Items[i].ID == id {
			v := qty
			s.Items[i].CountedQuantity = &v
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownItem, id)
}

// SetNotes attaches free-text notes to one allocation.
func (s *Session) SetNotes(id, notes string) error {
	if s.State == StateConfirmed {
		return fmt.Errorf("%w: set notes in %s", ErrInvalidTransition, s.State)
	}
	for i := range s.Items {
		if s.Items[i].ID == id {
			s.Items[i].Notes = notes
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownItem, id)
}

// BeginReview moves counting to review. The guard requires an explicit count
// on every item; on failure the session stays in counting.
func (s *Session) BeginReview() error {
	if s.State != StateCounting {
		return fmt.Errorf("%w: review from %s", ErrInvalidTransition, s.State)
	}
	for _, it := range s.Items {
		if it.CountedQuantity == nil {
			return fmt.Errorf("%w: %s not counted", ErrIncompleteCount, it.ProductLabel)
		}
	}
	s.State = StateReview
	return nil
}

// Reopen returns from review to counting so the operator can revise counts.
// The transition is unconditional.
func (s *Session) Reopen() error {
	if s.State != StateReview {
		return fmt.Errorf("%w: reopen from %s", ErrInvalidTransition, s.State)
	}
	s.State = StateCounting
	return nil
}

// Confirm moves review to confirmed. Divergence itself blocks nothing, but
// every divergent item must carry notes explaining the falta/sobra.
func (s *Session) Confirm() error {
	if s.State != StateReview {
		return fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, s.State)
	}
	for _, it := range s.Items {
		if it.Divergence() != 0 && strings.TrimSpace(it.Notes) == "" {
			return fmt.Errorf("%w: %s", ErrMissingDivergenceNotes, it.ProductLabel)
		}
	}
	s.State = StateConfirmed
	return nil
}

// Summary recomputes the aggregate divergence for the session's items.
func (s *Session) Summary() Summary {
	return Summarize(s.Items)
}

// View returns the items as they should be exposed to the operator. During a
// blind count the expected quantities are dropped from the payload entirely,
// so a zero expectation stays distinguishable from a redacted one, unless the
// operator explicitly toggled the reveal.
func (s *Session) View() []Count {
	out := make([]Count, len(s.Items))
	copy(out, s.Items)
	if s.State == StateCounting && !s.RevealExpected {
		for i := range out {
			out[i].ExpectedQuantity = nil
		}
	}
	return out
}
