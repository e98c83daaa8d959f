package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"poultryflow/auth"
	"poultryflow/pricing"
	"poultryflow/product"
)

func newTestService(repo *fakeRepo, products *fakeProducts) (*Service, *fakePool) {
	pool := &fakePool{}
	svc := NewService(pool, repo, products, pricing.DefaultPolicy()).
		WithIDGenerator(func() string { return "booking-1" }).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) })
	return svc, pool
}

func TestCreate_FreezesChickFlatFee(t *testing.T) {
	repo := newFakeRepo()
	products := &fakeProducts{p: product.Product{
		ID:                "prod-1",
		Category:          product.CategoryChick,
		BookingFeePerUnit: 50,
		Active:            true,
	}}
	svc, pool := newTestService(repo, products)

	b, err := svc.Create(context.Background(), CreateParams{
		CustomerID:   "cust-1",
		ProductID:    "prod-1",
		Quantity:     5,
		ContactName:  "Amina",
		ContactPhone: "0700000001",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if b.BookingFee != 300 {
		t.Fatalf("expected flat fee 300, got %d", b.BookingFee)
	}
	if b.Status != StatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if !pool.tx.committed {
		t.Error("expected commit")
	}
	if len(repo.events) != 1 || repo.events[0].eventType != EventBookingCreated {
		t.Fatalf("expected one BOOKING_CREATED event, got %+v", repo.events)
	}
}

func TestCreate_PerUnitFeeAboveThreshold(t *testing.T) {
	repo := newFakeRepo()
	products := &fakeProducts{p: product.Product{
		ID:                "prod-1",
		Category:          product.CategoryChick,
		BookingFeePerUnit: 50,
		Active:            true,
	}}
	svc, _ := newTestService(repo, products)

	b, err := svc.Create(context.Background(), CreateParams{
		CustomerID:   "cust-1",
		ProductID:    "prod-1",
		Quantity:     12,
		ContactName:  "Amina",
		ContactPhone: "0700000001",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.BookingFee != 600 {
		t.Fatalf("expected per-unit fee 600, got %d", b.BookingFee)
	}
}

func TestCreate_Validation(t *testing.T) {
	repo := newFakeRepo()
	products := &fakeProducts{p: product.Product{ID: "prod-1", Active: true}}
	svc, _ := newTestService(repo, products)

	_, err := svc.Create(context.Background(), CreateParams{
		CustomerID: "cust-1", ProductID: "prod-1", Quantity: 0,
		ContactName: "Amina", ContactPhone: "0700000001",
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	products.p.Active = false
	_, err = svc.Create(context.Background(), CreateParams{
		CustomerID: "cust-1", ProductID: "prod-1", Quantity: 1,
		ContactName: "Amina", ContactPhone: "0700000001",
	})
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}

	products.p.Active = true
	products.err = product.ErrNotFound
	_, err = svc.Create(context.Background(), CreateParams{
		CustomerID: "cust-1", ProductID: "prod-x", Quantity: 1,
		ContactName: "Amina", ContactPhone: "0700000001",
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestTransition_RejectsSkipping(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusPending, BookingFee: 300}
	svc, pool := newTestService(repo, &fakeProducts{})

	_, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		ActorID:    "mgr-1",
		NextStatus: StatusCompleted,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if pool.tx.committed {
		t.Error("expected no commit on rejected transition")
	}
	if len(repo.updates) != 0 {
		t.Errorf("expected no status writes, got %d", len(repo.updates))
	}
}

func TestTransition_RejectsBackward(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusAllocated, BookingFee: 300}
	svc, _ := newTestService(repo, &fakeProducts{})

	_, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		NextStatus: StatusCalled,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransition_InOrderSucceeds(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusPending, BookingFee: 300}
	svc, _ := newTestService(repo, &fakeProducts{})

	for _, next := range []Status{StatusCalled, StatusAllocated, StatusCompleted} {
		updated, err := svc.Transition(context.Background(), TransitionParams{
			BookingID:  "b-1",
			ActorID:    "mgr-1",
			NextStatus: next,
		})
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
		if updated.BookingFee != 300 {
			t.Fatalf("fee must stay frozen at 300, got %d", updated.BookingFee)
		}
	}
}

func TestTransition_IdempotentSameStatus(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusCalled, BookingFee: 300}
	svc, pool := newTestService(repo, &fakeProducts{})

	updated, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		NextStatus: StatusCalled,
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != StatusCalled {
		t.Fatalf("expected called, got %s", updated.Status)
	}
	if len(repo.updates) != 0 {
		t.Error("expected no writes on same-status no-op")
	}
	if pool.tx.committed {
		t.Error("expected no commit on no-op")
	}
}

func TestTransition_ExpectedStatusConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusCalled, BookingFee: 300}
	svc, _ := newTestService(repo, &fakeProducts{})

	_, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:      "b-1",
		ExpectedStatus: StatusPending,
		NextStatus:     StatusCalled,
	})
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestTransition_NoteOnlyOnCalledOrAllocated(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusAllocated, BookingFee: 300}
	svc, _ := newTestService(repo, &fakeProducts{})

	note := "bring crates"
	_, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		NextStatus: StatusCompleted,
		StaffNote:  &note,
	})
	if !errors.Is(err, ErrNoteNotAllowed) {
		t.Fatalf("expected ErrNoteNotAllowed, got %v", err)
	}
}

func TestTransition_EnqueuesCreditRequestOnAllocated(t *testing.T) {
	code := "AMINA1234"
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusCalled, BookingFee: 600, ReferralCode: &code}
	svc, _ := newTestService(repo, &fakeProducts{})

	if _, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		NextStatus: StatusAllocated,
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	if len(repo.outbox) != 1 {
		t.Fatalf("expected one outbox message, got %d", len(repo.outbox))
	}
	if repo.outbox[0].topic != OutboxTopicCreditRequested {
		t.Fatalf("unexpected topic %s", repo.outbox[0].topic)
	}

	// Completing afterwards must not enqueue a second crediting request.
	if _, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		NextStatus: StatusCompleted,
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(repo.outbox) != 1 {
		t.Fatalf("expected still one outbox message, got %d", len(repo.outbox))
	}
}

func TestTransition_NoCreditRequestWithoutReferral(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", Status: StatusCalled, BookingFee: 600}
	svc, _ := newTestService(repo, &fakeProducts{})

	if _, err := svc.Transition(context.Background(), TransitionParams{
		BookingID:  "b-1",
		NextStatus: StatusAllocated,
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(repo.outbox) != 0 {
		t.Fatalf("expected no outbox message, got %d", len(repo.outbox))
	}
}

func TestGet_AccessControl(t *testing.T) {
	repo := newFakeRepo()
	repo.current = Booking{ID: "b-1", CustomerID: "cust-1", Status: StatusPending}
	svc, _ := newTestService(repo, &fakeProducts{})

	if _, err := svc.Get(context.Background(), "b-1", "cust-2", auth.RoleCustomer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for other customer, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "b-1", "cust-1", auth.RoleCustomer); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(context.Background(), "b-1", "mgr-1", auth.RoleManager); err != nil {
		t.Fatalf("staff read: %v", err)
	}
}

func TestLookupByPhone_StaffOnly(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeProducts{})

	if _, err := svc.LookupByPhone(context.Background(), "0700000001", auth.RoleCustomer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.LookupByPhone(context.Background(), "0700000001", auth.RoleCEO); err != nil {
		t.Fatalf("staff lookup: %v", err)
	}
}

type recordedEvent struct {
	bookingID string
	eventType string
}

type recordedOutbox struct {
	topic   string
	payload map[string]any
}

type fakeRepo struct {
	current Booking
	updates []UpdateStatusParams
	events  []recordedEvent
	outbox  []recordedOutbox
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{}
}

func (f *fakeRepo) Insert(ctx context.Context, tx pgx.Tx, b Booking) (Booking, error) {
	f.current = b
	return b, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Booking, error) {
	if f.current.ID != id {
		return Booking{}, ErrNotFound
	}
	return f.current, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, params UpdateStatusParams) (Booking, error) {
	f.updates = append(f.updates, params)
	f.current.Status = params.NextStatus
	if params.StaffNote != nil {
		f.current.StaffNote = params.StaffNote
	}
	if params.ExpectedCollection != nil {
		f.current.ExpectedCollection = params.ExpectedCollection
	}
	return f.current, nil
}

func (f *fakeRepo) AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType string, payload map[string]any, actorID *string) error {
	f.events = append(f.events, recordedEvent{bookingID: bookingID, eventType: eventType})
	return nil
}

func (f *fakeRepo) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	f.outbox = append(f.outbox, recordedOutbox{topic: topic, payload: payload})
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (Booking, error) {
	if f.current.ID != id {
		return Booking{}, ErrNotFound
	}
	return f.current, nil
}

func (f *fakeRepo) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Booking, error) {
	if f.current.CustomerID == customerID {
		return []Booking{f.current}, nil
	}
	return nil, nil
}

func (f *fakeRepo) ListByPhone(ctx context.Context, phone string, limit int) ([]Booking, error) {
	if f.current.ContactPhone == phone {
		return []Booking{f.current}, nil
	}
	return nil, nil
}

type fakeProducts struct {
	p   product.Product
	err error
}

func (f *fakeProducts) GetByID(ctx context.Context, id string) (product.Product, error) {
	if f.err != nil {
		return product.Product{}, f.err
	}
	return f.p, nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
