package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no booking row exists for the identifier.
	ErrNotFound = errors.New("booking: not found")
)

// Repository defines the data access required by the service. Methods taking
// a pgx.Tx participate in the caller's transaction.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, b Booking) (Booking, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, params UpdateStatusParams) (Booking, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType string, payload map[string]any, actorID *string) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error

	GetByID(ctx context.Context, id string) (Booking, error)
	ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Booking, error)
	ListByPhone(ctx context.Context, phone string, limit int) ([]Booking, error)
}

// UpdateStatusParams enumerates the writes for a single status transition.
// BookingFee is deliberately absent: the fee column is written once at insert.
type UpdateStatusParams struct {
	BookingID          string
	NextStatus         Status
	StaffNote          *string
	ExpectedCollection *time.Time
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed booking repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const bookingColumns = `id, customer_id, product_id, quantity, booking_fee, contact_name, contact_phone,
referral_code, status::text, staff_note, expected_collection, created_at, updated_at`

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, b Booking) (Booking, error) {
	query := fmt.Sprintf(`
		INSERT INTO bookings (id, customer_id, product_id, quantity, booking_fee, contact_name, contact_phone, referral_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING %s`, bookingColumns)

	created, err := scanBooking(tx.QueryRow(ctx, query,
		b.ID, b.CustomerID, b.ProductID, b.Quantity, b.BookingFee, b.ContactName, b.ContactPhone, b.ReferralCode))
	if err != nil {
		return Booking{}, fmt.Errorf("booking: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1 FOR UPDATE`, bookingColumns)

	b, err := scanBooking(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: get for update: %w", err)
	}
	return b, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, params UpdateStatusParams) (Booking, error) {
	query := fmt.Sprintf(`
		UPDATE bookings
		SET status = $2::booking_status,
		    staff_note = COALESCE($3, staff_note),
		    expected_collection = COALESCE($4, expected_collection),
		    updated_at = now()
		WHERE id = $1
		RETURNING %s`, bookingColumns)

	b, err := scanBooking(tx.QueryRow(ctx, query, params.BookingID, params.NextStatus, params.StaffNote, params.ExpectedCollection))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: update status: %w", err)
	}
	return b, nil
}

func (r *PGRepository) AppendEvent(ctx context.Context, tx pgx.Tx, bookingID, eventType string, payload map[string]any, actorID *string) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("booking: marshal event payload: %w", err)
	}

	var actor any
	if actorID != nil && *actorID != "" {
		actor = *actorID
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_events (booking_id, type, payload, actor_id)
		VALUES ($1, $2, $3, $4)`, bookingID, eventType, payloadBytes, actor); err != nil {
		return fmt.Errorf("booking: insert event: %w", err)
	}
	return nil
}

func (r *PGRepository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("booking: marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (topic, payload)
		VALUES ($1, $2)`, topic, payloadBytes); err != nil {
		return fmt.Errorf("booking: insert outbox message: %w", err)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, fmt.Errorf("booking: get by id: %w", err)
	}
	return b, nil
}

func (r *PGRepository) ListForCustomer(ctx context.Context, customerID string, limit, offset int) ([]Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, bookingColumns)

	return r.queryBookings(ctx, query, customerID, limit, offset)
}

func (r *PGRepository) ListByPhone(ctx context.Context, phone string, limit int) ([]Booking, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s FROM bookings
		WHERE contact_phone = $1
		ORDER BY created_at DESC
		LIMIT $2`, bookingColumns)

	return r.queryBookings(ctx, query, phone, limit)
}

func (r *PGRepository) queryBookings(ctx context.Context, query string, args ...any) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: query: %w", err)
	}
	defer rows.Close()

	bookings := make([]Booking, 0, 8)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate: %w", err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&b.ProductID,
		&b.Quantity,
		&b.BookingFee,
		&b.ContactName,
		&b.ContactPhone,
		&b.ReferralCode,
		&b.Status,
		&b.StaffNote,
		&b.ExpectedCollection,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return Booking{}, err
	}
	return b, nil
}
