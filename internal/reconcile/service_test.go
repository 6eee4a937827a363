package reconcile

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ateliemoda/backend-atelie/internal/common"
	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
	m.Run()
}

type stubQuerier struct {
	mu sync.Mutex

	event repo.ConsignmentRow
	items []repo.LineItemRow

	counted     []repo.CountItemUpdate
	applyErrFor uuid.UUID

	audited   bool
	auditedAt time.Time
}

func (q *stubQuerier) GetConsignment(ctx context.Context, id uuid.UUID) (repo.ConsignmentRow, error) {
	if q.event.ID == uuid.Nil {
		return repo.ConsignmentRow{}, repo.ErrNotFound
	}
	return q.event, nil
}

func (q *stubQuerier) ListLineItems(ctx context.Context, consignmentID uuid.UUID) ([]repo.LineItemRow, error) {
	return q.items, nil
}

func (q *stubQuerier) ApplyCountItem(ctx context.Context, upd repo.CountItemUpdate) error {
	if upd.ID == q.applyErrFor {
		return errors.New("write failed")
	}
	q.mu.Lock()
	q.counted = append(q.counted, upd)
	q.mu.Unlock()
	return nil
}

func (q *stubQuerier) MarkStockAudited(ctx context.Context, id uuid.UUID, at time.Time) error {
	q.audited = true
	q.auditedAt = at
	return nil
}

type fakeLedger struct {
	mu      sync.Mutex
	returns map[uuid.UUID]int
}

func (l *fakeLedger) Allocate(ctx context.Context, eventID, inventoryID uuid.UUID, qty int) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (l *fakeLedger) Return(ctx context.Context, allocationID uuid.UUID, qty int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.returns == nil {
		l.returns = map[uuid.UUID]int{}
	}
	l.returns[allocationID] += qty
	return nil
}

func (l *fakeLedger) ExpireReservations(ctx context.Context) (int, error) { return 0, nil }

func testService(t *testing.T, q *stubQuerier) (*Service, context.Context, *fakeLedger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ledger := &fakeLedger{}
	svc := &Service{
		Q:        q,
		Sessions: &RedisStore{R: client, TTL: time.Hour},
		Ledger:   ledger,
		Now:      func() time.Time { return time.Unix(1700000000, 0) },
	}
	ctx := tenant.WithTenant(context.Background(), uuid.NewString())
	return svc, ctx, ledger
}

func eventFixture(items ...repo.LineItemRow) *stubQuerier {
	return &stubQuerier{
		event: repo.ConsignmentRow{ID: uuid.New(), Kind: "event", PartnerName: "Bazar Primavera"},
		items: items,
	}
}

func allocation(label string, allocated, sold int) repo.LineItemRow {
	reservation := uuid.New()
	return repo.LineItemRow{
		ID:                uuid.New(),
		AllocationID:      &reservation,
		ProductLabel:      label,
		QuantityAllocated: allocated,
		QuantitySold:      sold,
	}
}

func TestStartHidesExpectedQuantities(t *testing.T) {
	a := allocation("vestido", 10, 4)
	q := eventFixture(a)
	svc, ctx, _ := testService(t, q)

	v, err := svc.Start(ctx, q.event.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if v.State != StateCounting {
		t.Fatalf("expected counting, got %s", v.State)
	}
	if v.Items[0].ExpectedQuantity != nil {
		t.Fatalf("expected quantity must be omitted during blind count, got %v", v.Items[0].ExpectedQuantity)
	}

	// The stored session still knows the real expectation.
	sess, err := svc.Sessions.Get(ctx, q.event.ID.String())
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if got := sess.Items[0].ExpectedQuantity; got == nil || *got != 6 {
		t.Fatalf("expected 6 (allocated 10, sold 4), got %v", got)
	}
}

func TestStartExpectedAccountsForPriorMovements(t *testing.T) {
	// Units already returned or handed over as stock payment are not expected
	// back; counting the true on-hand quantity must not report a shortage.
	a := allocation("vestido", 10, 2)
	a.QuantityReturned = 3
	a.UsedAsPayment = 1
	q := eventFixture(a)
	svc, ctx, _ := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess, err := svc.Sessions.Get(ctx, q.event.ID.String())
	if err != nil {
		t.Fatalf("Get session: %v", err)
	}
	if got := sess.Items[0].ExpectedQuantity; got == nil || *got != 4 {
		t.Fatalf("expected 4 (10 allocated - 2 sold - 3 returned - 1 paid), got %v", got)
	}
	if err := sess.SetCount(a.ID.String(), 4); err != nil {
		t.Fatalf("SetCount: %v", err)
	}
	if d := sess.Items[0].Divergence(); d != 0 {
		t.Fatalf("counting the on-hand quantity must not diverge, got %d", d)
	}
}

func TestStartResumesExistingSession(t *testing.T) {
	a := allocation("saia", 5, 0)
	q := eventFixture(a)
	svc, ctx, _ := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.RecordCount(ctx, q.event.ID, a.ID.String(), 3); err != nil {
		t.Fatalf("RecordCount: %v", err)
	}

	v, err := svc.Start(ctx, q.event.ID)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if v.Items[0].CountedQuantity == nil || *v.Items[0].CountedQuantity != 3 {
		t.Fatalf("expected resumed count 3, got %+v", v.Items[0].CountedQuantity)
	}
}

func TestStartRejectsNonEvent(t *testing.T) {
	q := eventFixture()
	q.event.Kind = "consignment"
	svc, ctx, _ := testService(t, q)

	_, err := svc.Start(ctx, q.event.ID)
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.Code != "NOT_AN_EVENT" {
		t.Fatalf("expected NOT_AN_EVENT, got %v", err)
	}
}

func TestConfirmCommitsCountsAndReturnsStock(t *testing.T) {
	a := allocation("vestido", 10, 4) // expects 6 back
	b := allocation("saia", 5, 5)     // expects 0 back
	q := eventFixture(a, b)
	svc, ctx, ledger := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.RecordCount(ctx, q.event.ID, a.ID.String(), 5); err != nil {
		t.Fatalf("count a: %v", err)
	}
	if _, err := svc.RecordCount(ctx, q.event.ID, b.ID.String(), 0); err != nil {
		t.Fatalf("count b: %v", err)
	}
	if _, err := svc.BeginReview(ctx, q.event.ID); err != nil {
		t.Fatalf("BeginReview: %v", err)
	}
	if _, err := svc.RecordNotes(ctx, q.event.ID, a.ID.String(), "uma peca extraviada no transporte"); err != nil {
		t.Fatalf("notes: %v", err)
	}

	v, err := svc.Confirm(ctx, q.event.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if v.State != StateConfirmed {
		t.Fatalf("expected confirmed, got %s", v.State)
	}
	if v.Summary.TotalDivergence != 1 || !v.Summary.HasDivergence {
		t.Fatalf("unexpected summary: %+v", v.Summary)
	}
	if !q.audited {
		t.Fatal("audit timestamp not written")
	}
	if len(q.counted) != 2 {
		t.Fatalf("expected 2 count writes, got %d", len(q.counted))
	}
	if got := ledger.returns[*a.AllocationID]; got != 5 {
		t.Fatalf("expected 5 units returned against a's reservation, got %d", got)
	}
	if _, ok := ledger.returns[a.ID]; ok {
		t.Fatal("returns must target the stock reservation, not the line item")
	}
	if _, ok := ledger.returns[*b.AllocationID]; ok {
		t.Fatal("zero count must not trigger a ledger return")
	}
	if _, err := svc.Get(ctx, q.event.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session should be discarded after confirm, got %v", err)
	}
}

func TestConfirmSkipsLedgerForUnreservedLines(t *testing.T) {
	a := allocation("echarpe avulsa", 3, 0)
	a.AllocationID = nil
	q := eventFixture(a)
	svc, ctx, ledger := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.RecordCount(ctx, q.event.ID, a.ID.String(), 3); err != nil {
		t.Fatalf("count: %v", err)
	}
	if _, err := svc.BeginReview(ctx, q.event.ID); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := svc.Confirm(ctx, q.event.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(ledger.returns) != 0 {
		t.Fatalf("line without a reservation must not touch the ledger, got %v", ledger.returns)
	}
	if !q.audited {
		t.Fatal("audit timestamp not written")
	}
}

func TestConfirmServiceRejectsMissingNotes(t *testing.T) {
	a := allocation("vestido", 4, 0)
	q := eventFixture(a)
	svc, ctx, _ := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.RecordCount(ctx, q.event.ID, a.ID.String(), 3); err != nil {
		t.Fatalf("count: %v", err)
	}
	if _, err := svc.BeginReview(ctx, q.event.ID); err != nil {
		t.Fatalf("review: %v", err)
	}

	_, err := svc.Confirm(ctx, q.event.ID)
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.Code != "DIVERGENCE_NOTES_REQUIRED" {
		t.Fatalf("expected DIVERGENCE_NOTES_REQUIRED, got %v", err)
	}
	if q.audited {
		t.Fatal("audit stamp must not be written on rejected confirm")
	}
}

func TestConfirmAbortsAuditStampOnItemFailure(t *testing.T) {
	a := allocation("vestido", 4, 0)
	b := allocation("saia", 4, 0)
	q := eventFixture(a, b)
	q.applyErrFor = b.ID
	svc, ctx, _ := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, id := range []string{a.ID.String(), b.ID.String()} {
		if _, err := svc.RecordCount(ctx, q.event.ID, id, 4); err != nil {
			t.Fatalf("count: %v", err)
		}
	}
	if _, err := svc.BeginReview(ctx, q.event.ID); err != nil {
		t.Fatalf("review: %v", err)
	}

	_, err := svc.Confirm(ctx, q.event.ID)
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.Code != "RECONCILE_PARTIAL" || appErr.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected RECONCILE_PARTIAL 500, got %v", err)
	}
	if q.audited {
		t.Fatal("audit stamp must not be written when an item write fails")
	}
	// Session survives so the confirmation can be retried.
	if _, err := svc.Get(ctx, q.event.ID); err != nil {
		t.Fatalf("session should survive failed confirm: %v", err)
	}
}

func TestReviewRejectsIncompleteCount(t *testing.T) {
	a := allocation("vestido", 4, 0)
	b := allocation("saia", 4, 0)
	q := eventFixture(a, b)
	svc, ctx, _ := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.RecordCount(ctx, q.event.ID, a.ID.String(), 4); err != nil {
		t.Fatalf("count: %v", err)
	}

	_, err := svc.BeginReview(ctx, q.event.ID)
	appErr, ok := common.AsAppError(err)
	if !ok || appErr.Code != "INCOMPLETE_COUNT" {
		t.Fatalf("expected INCOMPLETE_COUNT, got %v", err)
	}

	v, err := svc.Get(ctx, q.event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.State != StateCounting {
		t.Fatalf("session must stay in counting, got %s", v.State)
	}
}

func TestRevealShowsExpectedDuringCounting(t *testing.T) {
	a := allocation("vestido", 10, 2)
	q := eventFixture(a)
	svc, ctx, _ := testService(t, q)

	if _, err := svc.Start(ctx, q.event.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	v, err := svc.Reveal(ctx, q.event.ID, true)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if got := v.Items[0].ExpectedQuantity; got == nil || *got != 8 {
		t.Fatalf("expected 8 after reveal, got %v", got)
	}
}
