package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"poultryflow/auth"
	"poultryflow/pricing"
	"poultryflow/product"
)

var (
	// ErrInvalidQuantity signals a non-positive order quantity.
	ErrInvalidQuantity = errors.New("booking: quantity must be at least 1")
	// ErrProductNotFound signals the referenced product does not exist.
	ErrProductNotFound = errors.New("booking: product not found")
	// ErrProductInactive signals the product is closed for booking.
	ErrProductInactive = errors.New("booking: product not open for booking")
	// ErrUnknownStatus signals a transition target outside the lifecycle.
	ErrUnknownStatus = errors.New("booking: unknown status")
	// ErrInvalidTransition signals a backward or skipping lifecycle move.
	ErrInvalidTransition = errors.New("booking: invalid status transition")
	// ErrStatusConflict signals the stored status no longer matches the
	// caller's expected status; the whole transition must be retried.
	ErrStatusConflict = errors.New("booking: status changed concurrently")
	// ErrNoteNotAllowed signals a note or collection date on a transition
	// that doesn't accept them.
	ErrNoteNotAllowed = errors.New("booking: note and collection date only allowed on called or allocated")
	// ErrForbidden signals the actor may not read or mutate the booking.
	ErrForbidden = errors.New("booking: forbidden")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ProductReader resolves products referenced by new bookings.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (product.Product, error)
}

// Service handles booking business logic.
type Service struct {
	pool        TxBeginner
	repo        Repository
	products    ProductReader
	policy      pricing.Policy
	idGenerator func() string
	now         func() time.Time
}

// NewService creates a booking service with the given collaborators.
func NewService(pool TxBeginner, repo Repository, products ProductReader, policy pricing.Policy) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		products:    products,
		policy:      policy,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// WithIDGenerator overrides booking id generation, for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateParams contains the customer-supplied fields for a new booking.
type CreateParams struct {
	CustomerID   string
	ProductID    string
	Quantity     int
	ContactName  string
	ContactPhone string
	ReferralCode *string
}

// Create opens a new booking in pending status. The booking fee is computed
// once from the product's current fee policy and frozen on the record.
func (s *Service) Create(ctx context.Context, params CreateParams) (Booking, error) {
	if params.CustomerID == "" {
		return Booking{}, fmt.Errorf("booking: missing customer id")
	}
	if params.ProductID == "" {
		return Booking{}, fmt.Errorf("booking: missing product id")
	}
	if params.Quantity < 1 {
		return Booking{}, ErrInvalidQuantity
	}
	params.ContactName = strings.TrimSpace(params.ContactName)
	params.ContactPhone = strings.TrimSpace(params.ContactPhone)
	if params.ContactName == "" || params.ContactPhone == "" {
		return Booking{}, fmt.Errorf("booking: contact name and phone are required")
	}

	p, err := s.products.GetByID(ctx, params.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return Booking{}, ErrProductNotFound
		}
		return Booking{}, err
	}
	if !p.Active {
		return Booking{}, ErrProductInactive
	}

	var referralCode *string
	if params.ReferralCode != nil {
		trimmed := strings.ToUpper(strings.TrimSpace(*params.ReferralCode))
		if trimmed != "" {
			referralCode = &trimmed
		}
	}

	b := Booking{
		ID:           s.idGenerator(),
		CustomerID:   params.CustomerID,
		ProductID:    p.ID,
		Quantity:     params.Quantity,
		BookingFee:   s.policy.BookingFee(p.Category, p.BookingFeePerUnit, params.Quantity),
		ContactName:  params.ContactName,
		ContactPhone: params.ContactPhone,
		ReferralCode: referralCode,
		Status:       StatusPending,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Insert(ctx, tx, b)
	if err != nil {
		return Booking{}, err
	}

	payload := map[string]any{
		"booking_id":  created.ID,
		"product_id":  created.ProductID,
		"quantity":    created.Quantity,
		"booking_fee": created.BookingFee,
	}
	if err := s.repo.AppendEvent(ctx, tx, created.ID, EventBookingCreated, payload, &params.CustomerID); err != nil {
		return Booking{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, fmt.Errorf("booking: commit tx: %w", err)
	}

	return created, nil
}

// TransitionParams describes a staff-requested status change. ExpectedStatus,
// when set, is the optimistic-concurrency precondition: the transition fails
// with ErrStatusConflict if the stored status differs.
type TransitionParams struct {
	BookingID          string
	ActorID            string
	ExpectedStatus     Status
	NextStatus         Status
	StaffNote          *string
	ExpectedCollection *time.Time
}

// Transition advances a booking one step through the lifecycle inside a single
// transaction. Same-status requests are idempotent no-ops. When the booking
// first enters a counted status and carries a referral code, a crediting
// request is enqueued on the outbox in the same transaction.
func (s *Service) Transition(ctx context.Context, params TransitionParams) (Booking, error) {
	if params.BookingID == "" {
		return Booking{}, fmt.Errorf("booking: missing booking id")
	}
	if !params.NextStatus.Known() {
		return Booking{}, ErrUnknownStatus
	}
	if params.ExpectedStatus != "" && !params.ExpectedStatus.Known() {
		return Booking{}, ErrUnknownStatus
	}
	hasAttachments := params.StaffNote != nil || params.ExpectedCollection != nil
	if hasAttachments && params.NextStatus != StatusCalled && params.NextStatus != StatusAllocated {
		return Booking{}, ErrNoteNotAllowed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Booking{}, fmt.Errorf("booking: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, params.BookingID)
	if err != nil {
		return Booking{}, err
	}

	if params.ExpectedStatus != "" && current.Status != params.ExpectedStatus {
		return Booking{}, ErrStatusConflict
	}

	if params.NextStatus == current.Status {
		return current, nil
	}
	if statusRank[params.NextStatus] != statusRank[current.Status]+1 {
		return Booking{}, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, tx, UpdateStatusParams{
		BookingID:          params.BookingID,
		NextStatus:         params.NextStatus,
		StaffNote:          params.StaffNote,
		ExpectedCollection: params.ExpectedCollection,
	})
	if err != nil {
		return Booking{}, err
	}

	var actorPtr *string
	if params.ActorID != "" {
		actorPtr = &params.ActorID
	}
	payload := map[string]any{
		"previous_status": current.Status,
		"next_status":     params.NextStatus,
	}
	if err := s.repo.AppendEvent(ctx, tx, params.BookingID, EventBookingStatusChanged, payload, actorPtr); err != nil {
		return Booking{}, err
	}

	if params.NextStatus.Counted() && !current.Status.Counted() && updated.ReferralCode != nil {
		creditPayload := map[string]any{
			"booking_id":    updated.ID,
			"referral_code": *updated.ReferralCode,
			"booking_fee":   updated.BookingFee,
		}
		if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicCreditRequested, creditPayload); err != nil {
			return Booking{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Booking{}, fmt.Errorf("booking: commit tx: %w", err)
	}

	return updated, nil
}

// Get returns a booking by exact id. Customers may only read their own
// bookings; staff may read any.
func (s *Service) Get(ctx context.Context, bookingID, actorID string, actorRole auth.Role) (Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if !actorRole.Staff() && b.CustomerID != actorID {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

// ListForCustomer returns the customer's own bookings, newest first.
func (s *Service) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Booking, error) {
	return s.repo.ListForCustomer(ctx, customerID, limit, offset)
}

// LookupByPhone returns bookings matching a contact phone number. Staff only.
func (s *Service) LookupByPhone(ctx context.Context, phone string, actorRole auth.Role) ([]Booking, error) {
	if !actorRole.Staff() {
		return nil, ErrForbidden
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("booking: phone required")
	}
	return s.repo.ListByPhone(ctx, phone, 20)
}
