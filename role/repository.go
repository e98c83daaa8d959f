package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poultryflow/auth"
)

var (
	// ErrUserNotFound signals the user row is absent.
	ErrUserNotFound = errors.New("role: user not found")
	// ErrAgentNotFound signals no agent profile exists for the user.
	ErrAgentNotFound = errors.New("role: agent profile not found")
)

// Repository defines the data access required by the synchronizer. All
// mutation methods take the caller's transaction; a plan is never executed
// across transaction boundaries.
type Repository interface {
	GetUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) (role auth.Role, displayName string, err error)
	ReferralCodeInUse(ctx context.Context, tx pgx.Tx, code, ownerUserID string) (bool, error)
	DeleteMarker(ctx context.Context, tx pgx.Tx, marker Marker, userID string) error
	CreateMarker(ctx context.Context, tx pgx.Tx, marker Marker, userID string) error
	CreateAgentProfile(ctx context.Context, tx pgx.Tx, userID, referralCode string) error
	UpdateUserRole(ctx context.Context, tx pgx.Tx, userID string, newRole auth.Role) error

	GetAgentProfile(ctx context.Context, userID string) (AgentProfile, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed role repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var markerTables = map[Marker]string{
	MarkerManager: "roles_manager",
	MarkerCEO:     "roles_ceo",
	MarkerAgent:   "agents",
}

func (r *PGRepository) GetUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) (auth.Role, string, error) {
	var (
		role auth.Role
		name string
	)
	err := tx.QueryRow(ctx, `SELECT role::text, full_name FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&role, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrUserNotFound
		}
		return "", "", fmt.Errorf("role: lock user: %w", err)
	}
	return role, name, nil
}

func (r *PGRepository) ReferralCodeInUse(ctx context.Context, tx pgx.Tx, code, ownerUserID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM agents WHERE referral_code = $1 AND user_id <> $2)`,
		code, ownerUserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("role: check referral code: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) DeleteMarker(ctx context.Context, tx pgx.Tx, marker Marker, userID string) error {
	table, ok := markerTables[marker]
	if !ok {
		return fmt.Errorf("role: unknown marker %q", marker)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table), userID); err != nil {
		return fmt.Errorf("role: delete %s marker: %w", marker, err)
	}
	return nil
}

func (r *PGRepository) CreateMarker(ctx context.Context, tx pgx.Tx, marker Marker, userID string) error {
	table, ok := markerTables[marker]
	if !ok || marker == MarkerAgent {
		return fmt.Errorf("role: marker %q not creatable here", marker)
	}
	query := fmt.Sprintf(`INSERT INTO %s (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, table)
	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("role: create %s marker: %w", marker, err)
	}
	return nil
}

// CreateAgentProfile upserts the agent profile. An existing profile keeps its
// accumulated totals; only the referral code slot is reserved on first create.
func (r *PGRepository) CreateAgentProfile(ctx context.Context, tx pgx.Tx, userID, referralCode string) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO agents (user_id, referral_code)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, referralCode); err != nil {
		return fmt.Errorf("role: create agent profile: %w", err)
	}
	return nil
}

func (r *PGRepository) UpdateUserRole(ctx context.Context, tx pgx.Tx, userID string, newRole auth.Role) error {
	tag, err := tx.Exec(ctx, `UPDATE users SET role = $2::user_role, updated_at = now() WHERE id = $1`, userID, newRole)
	if err != nil {
		return fmt.Errorf("role: update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PGRepository) GetAgentProfile(ctx context.Context, userID string) (AgentProfile, error) {
	var p AgentProfile
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, referral_code, total_commission, available_balance, booking_count, created_at, updated_at
		FROM agents WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.ReferralCode, &p.TotalCommission, &p.AvailableBalance, &p.BookingCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AgentProfile{}, ErrAgentNotFound
		}
		return AgentProfile{}, fmt.Errorf("role: get agent profile: %w", err)
	}
	return p, nil
}
