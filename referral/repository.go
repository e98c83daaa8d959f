package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"poultryflow/booking"
	"poultryflow/role"
)

var (
	// ErrCodeNotFound signals no agent owns the referral code.
	ErrCodeNotFound = errors.New("referral: code not found")
	// ErrCommissionNotFound is returned when no commission row exists.
	ErrCommissionNotFound = errors.New("referral: commission not found")
	// ErrAlreadyCredited signals a commission already exists for the booking.
	ErrAlreadyCredited = errors.New("referral: booking already credited")
)

// Repository defines the data access required by the service. Methods taking
// a pgx.Tx participate in the caller's transaction.
type Repository interface {
	GetAgentByCode(ctx context.Context, code string) (role.AgentProfile, error)
	GetAgentByCodeTx(ctx context.Context, tx pgx.Tx, code string) (role.AgentProfile, error)
	GetBookingForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (booking.Booking, error)
	InsertCommission(ctx context.Context, tx pgx.Tx, c Commission) error
	ApplyCredit(ctx context.Context, tx pgx.Tx, agentID string, amount int64) error
	GetCommissionForUpdate(ctx context.Context, tx pgx.Tx, commissionID string) (Commission, error)
	SettlePayout(ctx context.Context, tx pgx.Tx, commissionID, agentID string, amount int64, paidOutAt time.Time) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error

	ListForAgent(ctx context.Context, agentID string, limit int) ([]Commission, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed referral repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const agentColumns = `user_id, referral_code, total_commission, available_balance, booking_count, created_at, updated_at`

func (r *PGRepository) GetAgentByCode(ctx context.Context, code string) (role.AgentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE referral_code = $1`, agentColumns)
	return scanAgent(r.pool.QueryRow(ctx, query, code))
}

func (r *PGRepository) GetAgentByCodeTx(ctx context.Context, tx pgx.Tx, code string) (role.AgentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE referral_code = $1 FOR UPDATE`, agentColumns)
	return scanAgent(tx.QueryRow(ctx, query, code))
}

func scanAgent(row pgx.Row) (role.AgentProfile, error) {
	var p role.AgentProfile
	err := row.Scan(&p.UserID, &p.ReferralCode, &p.TotalCommission, &p.AvailableBalance, &p.BookingCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return role.AgentProfile{}, ErrCodeNotFound
		}
		return role.AgentProfile{}, fmt.Errorf("referral: scan agent: %w", err)
	}
	return p, nil
}

func (r *PGRepository) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (booking.Booking, error) {
	var b booking.Booking
	err := tx.QueryRow(ctx, `
		SELECT id, customer_id, booking_fee, referral_code, status::text
		FROM bookings WHERE id = $1 FOR UPDATE`, bookingID).
		Scan(&b.ID, &b.CustomerID, &b.BookingFee, &b.ReferralCode, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.Booking{}, booking.ErrNotFound
		}
		return booking.Booking{}, fmt.Errorf("referral: get booking: %w", err)
	}
	return b, nil
}

func (r *PGRepository) InsertCommission(ctx context.Context, tx pgx.Tx, c Commission) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO commissions (id, agent_id, booking_id, amount, status)
		VALUES ($1, $2, $3, $4, $5::commission_status)`,
		c.ID, c.AgentID, c.BookingID, c.Amount, c.Status)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyCredited
		}
		return fmt.Errorf("referral: insert commission: %w", err)
	}
	return nil
}

func (r *PGRepository) ApplyCredit(ctx context.Context, tx pgx.Tx, agentID string, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE agents
		SET total_commission = total_commission + $2,
		    booking_count = booking_count + 1,
		    updated_at = now()
		WHERE user_id = $1`, agentID, amount)
	if err != nil {
		return fmt.Errorf("referral: apply credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *PGRepository) GetCommissionForUpdate(ctx context.Context, tx pgx.Tx, commissionID string) (Commission, error) {
	var c Commission
	err := tx.QueryRow(ctx, `
		SELECT id, agent_id, booking_id, amount, status::text, created_at, paid_out_at
		FROM commissions WHERE id = $1 FOR UPDATE`, commissionID).
		Scan(&c.ID, &c.AgentID, &c.BookingID, &c.Amount, &c.Status, &c.CreatedAt, &c.PaidOutAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commission{}, ErrCommissionNotFound
		}
		return Commission{}, fmt.Errorf("referral: get commission: %w", err)
	}
	return c, nil
}

// SettlePayout flips the commission to paid_out and moves the amount onto the
// agent's available balance, in the caller's transaction.
func (r *PGRepository) SettlePayout(ctx context.Context, tx pgx.Tx, commissionID, agentID string, amount int64, paidOutAt time.Time) error {
	if _, err := tx.Exec(ctx, `
		UPDATE commissions
		SET status = 'paid_out', paid_out_at = $2
		WHERE id = $1`, commissionID, paidOutAt); err != nil {
		return fmt.Errorf("referral: settle commission: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE agents
		SET available_balance = available_balance + $2,
		    updated_at = now()
		WHERE user_id = $1`, agentID, amount); err != nil {
		return fmt.Errorf("referral: settle balance: %w", err)
	}
	return nil
}

func (r *PGRepository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("referral: marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox (topic, payload)
		VALUES ($1, $2)`, topic, payloadBytes); err != nil {
		return fmt.Errorf("referral: insert outbox message: %w", err)
	}
	return nil
}

func (r *PGRepository) ListForAgent(ctx context.Context, agentID string, limit int) ([]Commission, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, agent_id, booking_id, amount, status::text, created_at, paid_out_at
		FROM commissions
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("referral: list commissions: %w", err)
	}
	defer rows.Close()

	commissions := make([]Commission, 0, 8)
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.AgentID, &c.BookingID, &c.Amount, &c.Status, &c.CreatedAt, &c.PaidOutAt); err != nil {
			return nil, fmt.Errorf("referral: scan commission: %w", err)
		}
		commissions = append(commissions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("referral: iterate commissions: %w", err)
	}
	return commissions, nil
}
