package reconcile

import (
	"errors"
	"testing"
)

func newTestSession() *Session {
	return NewSession("ev-1", []Count{
		{ID: "a", ProductLabel: "vestido", ExpectedQuantity: intPtr(10)},
		{ID: "b", ProductLabel: "blusa", ExpectedQuantity: intPtr(5)},
	})
}

func intPtr(v int) *int { return &v }

func TestDivergenceSignConvention(t *testing.T) {
	shortage := Count{ExpectedQuantity: intPtr(10), CountedQuantity: intPtr(7)}
	if d := shortage.Divergence(); d != 3 {
		t.Fatalf("expected +3 shortage, got %d", d)
	}
	if Badge(shortage.Divergence()) != "shortage" {
		t.Fatalf("expected shortage badge")
	}
	overage := Count{ExpectedQuantity: intPtr(5), CountedQuantity: intPtr(6)}
	if d := overage.Divergence(); d != -1 {
		t.Fatalf("expected -1 overage, got %d", d)
	}
	if Badge(overage.Divergence()) != "overage" {
		t.Fatalf("expected overage badge")
	}
	if Badge(0) != "reconciled" {
		t.Fatalf("expected reconciled badge")
	}
}

func TestSummarize(t *testing.T) {
	items := []Count{
		{ExpectedQuantity: intPtr(10), CountedQuantity: intPtr(7)},
		{ExpectedQuantity: intPtr(5), CountedQuantity: intPtr(6)},
	}
	sum := Summarize(items)
	if sum.TotalDivergence != 4 {
		t.Fatalf("expected total divergence 4, got %d", sum.TotalDivergence)
	}
	if !sum.HasDivergence {
		t.Fatalf("expected HasDivergence")
	}
	if clean := Summarize([]Count{{ExpectedQuantity: intPtr(3), CountedQuantity: intPtr(3)}}); clean.HasDivergence {
		t.Fatalf("expected no divergence")
	}
}

func TestReviewRequiresAllCounts(t *testing.T) {
	s := newTestSession()
	if err := s.SetCount("a", 10); err != nil {
		t.Fatalf("set count: %v", err)
	}
	if err := s.BeginReview(); !errors.Is(err, ErrIncompleteCount) {
		t.Fatalf("expected ErrIncompleteCount, got %v", err)
	}
	if s.State != StateCounting {
		t.Fatalf("guard failure must keep counting state, got %s", s.State)
	}
	// A count of exactly zero is valid and distinct from "not counted".
	if err := s.SetCount("b", 0); err != nil {
		t.Fatalf("set zero count: %v", err)
	}
	if err := s.BeginReview(); err != nil {
		t.Fatalf("begin review: %v", err)
	}
	if s.State != StateReview {
		t.Fatalf("expected review state, got %s", s.State)
	}
}

func TestReopenAndRecount(t *testing.T) {
	s := newTestSession()
	_ = s.SetCount("a", 10)
	_ = s.SetCount("b", 5)
	if err := s.BeginReview(); err != nil {
		t.Fatalf("begin review: %v", err)
	}
	if err := s.SetCount("a", 9); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("counting in review must fail, got %v", err)
	}
	if err := s.Reopen(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := s.SetCount("a", 9); err != nil {
		t.Fatalf("recount after reopen: %v", err)
	}
}

func TestConfirmRequiresNotesOnDivergentItems(t *testing.T) {
	s := newTestSession()
	_ = s.SetCount("a", 7) // shortage of 3
	_ = s.SetCount("b", 5)
	if err := s.BeginReview(); err != nil {
		t.Fatalf("begin review: %v", err)
	}
	if err := s.Confirm(); !errors.Is(err, ErrMissingDivergenceNotes) {
		t.Fatalf("expected ErrMissingDivergenceNotes, got %v", err)
	}
	if s.State != StateReview {
		t.Fatalf("failed confirm must keep review state, got %s", s.State)
	}
	if err := s.SetNotes("a", "3 pieces damaged in transit"); err != nil {
		t.Fatalf("set notes: %v", err)
	}
	if err := s.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if s.State != StateConfirmed {
		t.Fatalf("expected confirmed, got %s", s.State)
	}
}

func TestConfirmWithDivergenceAllowed(t *testing.T) {
	s := newTestSession()
	_ = s.SetCount("a", 7)
	_ = s.SetCount("b", 6)
	_ = s.SetNotes("a", "falta: extravio")
	_ = s.SetNotes("b", "sobra: troca nao registrada")
	if err := s.BeginReview(); err != nil {
		t.Fatalf("begin review: %v", err)
	}
	if err := s.Confirm(); err != nil {
		t.Fatalf("divergence must not block confirm, got %v", err)
	}
	sum := s.Summary()
	if sum.TotalDivergence != 4 || !sum.HasDivergence {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestBlindCountHidesExpected(t *testing.T) {
	s := newTestSession()
	// The redacted view drops the field outright so a genuine expectation of
	// zero is not confusable with "hidden".
	for _, it := range s.View() {
		if it.ExpectedQuantity != nil {
			t.Fatalf("expected quantities must be omitted while counting")
		}
	}
	s.RevealExpected = true
	if v := s.View()[0].ExpectedQuantity; v == nil || *v != 10 {
		t.Fatalf("reveal toggle must expose expected quantities, got %v", v)
	}
	s.RevealExpected = false
	_ = s.SetCount("a", 10)
	_ = s.SetCount("b", 5)
	_ = s.BeginReview()
	if v := s.View()[0].ExpectedQuantity; v == nil || *v != 10 {
		t.Fatalf("review state must always show expected quantities, got %v", v)
	}
}

func TestNegativeCountRejected(t *testing.T) {
	s := newTestSession()
	if err := s.SetCount("a", -1); !errors.Is(err, ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount, got %v", err)
	}
}
