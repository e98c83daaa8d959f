package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"poultryflow/auth"
)

var (
	// ErrSelfRoleChange signals a privileged actor trying to change their own
	// role, which is never allowed through this path.
	ErrSelfRoleChange = errors.New("role: cannot change own role")
	// ErrReferralCodeTaken signals the derived referral code is already
	// reserved by another agent. The caller must retry with a different
	// display name or assign a code manually.
	ErrReferralCodeTaken = errors.New("role: referral code already in use")
	// ErrStateConflict signals the transaction lost a serialization conflict
	// against a concurrent role change. The caller retries the whole change.
	ErrStateConflict = errors.New("role: concurrent role change, retry")
)

// TxBeginner abstracts pgxpool.Pool for testability. Role changes always run
// under serializable isolation.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Service executes role-change plans atomically.
type Service struct {
	pool TxBeginner
	repo Repository
}

// NewService creates a role synchronizer service.
func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{pool: pool, repo: repo}
}

// ChangeRoleParams identifies the acting staff member and the target change.
type ChangeRoleParams struct {
	ActorID string
	UserID  string
	NewRole auth.Role
}

// ChangeRole moves a user to a new role. Stale marker deletions, new marker
// or agent-profile creation, and the users.role update commit as one
// serializable transaction, so concurrent changes for the same user serialize
// and the record set always matches the role field.
func (s *Service) ChangeRole(ctx context.Context, params ChangeRoleParams) error {
	if params.ActorID == "" || params.UserID == "" {
		return fmt.Errorf("role: actor and user ids required")
	}
	if params.ActorID == params.UserID {
		return ErrSelfRoleChange
	}
	if !params.NewRole.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, params.NewRole)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("role: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	currentRole, displayName, err := s.repo.GetUserForUpdate(ctx, tx, params.UserID)
	if err != nil {
		return err
	}

	plan, err := Compute(params.UserID, displayName, currentRole, params.NewRole)
	if err != nil {
		return err
	}

	if err := s.execute(ctx, tx, plan); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapTxError(fmt.Errorf("role: commit tx: %w", err))
	}

	return nil
}

func (s *Service) execute(ctx context.Context, tx pgx.Tx, plan Plan) error {
	if plan.AgentReferralCode != "" {
		taken, err := s.repo.ReferralCodeInUse(ctx, tx, plan.AgentReferralCode, plan.UserID)
		if err != nil {
			return mapTxError(err)
		}
		if taken {
			return ErrReferralCodeTaken
		}
	}

	for _, marker := range plan.Deletes {
		if err := s.repo.DeleteMarker(ctx, tx, marker, plan.UserID); err != nil {
			return mapTxError(err)
		}
	}

	if plan.CreateManager {
		if err := s.repo.CreateMarker(ctx, tx, MarkerManager, plan.UserID); err != nil {
			return mapTxError(err)
		}
	}
	if plan.CreateCEO {
		if err := s.repo.CreateMarker(ctx, tx, MarkerCEO, plan.UserID); err != nil {
			return mapTxError(err)
		}
	}
	if plan.AgentReferralCode != "" {
		if err := s.repo.CreateAgentProfile(ctx, tx, plan.UserID, plan.AgentReferralCode); err != nil {
			return mapTxError(err)
		}
	}

	if err := s.repo.UpdateUserRole(ctx, tx, plan.UserID, plan.NewRole); err != nil {
		return mapTxError(err)
	}

	return nil
}

// GetAgentProfile returns the agent profile for a user.
func (s *Service) GetAgentProfile(ctx context.Context, userID string) (AgentProfile, error) {
	return s.repo.GetAgentProfile(ctx, userID)
}

// mapTxError converts Postgres serialization and deadlock failures into
// ErrStateConflict so callers retry the whole role change.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return ErrStateConflict
		case "23505":
			// agents.referral_code unique index lost a race.
			return ErrReferralCodeTaken
		}
	}
	return err
}
