package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"poultryflow/pricing"
	"poultryflow/role"
)

var (
	// ErrBookingNotCounted signals the booking has not reached a status that
	// qualifies for commission crediting.
	ErrBookingNotCounted = errors.New("referral: booking not yet counted")
	// ErrNoReferralCode signals the booking carries no referral code.
	ErrNoReferralCode = errors.New("referral: booking has no referral code")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service attributes bookings to agents and manages the commission ledger.
type Service struct {
	pool        TxBeginner
	repo        Repository
	policy      pricing.Policy
	idGenerator func() string
	now         func() time.Time
}

// NewService creates a referral service.
func NewService(pool TxBeginner, repo Repository, policy pricing.Policy) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		policy:      policy,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

// WithIDGenerator overrides commission id generation, for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve looks up the agent owning a referral code.
func (s *Service) Resolve(ctx context.Context, code string) (role.AgentProfile, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return role.AgentProfile{}, fmt.Errorf("referral: code required")
	}
	return s.repo.GetAgentByCode(ctx, code)
}

// Credit records the commission for a referred booking once it has reached a
// counted status. The commission insert, the agent total bump, and the
// notification outbox write commit as one transaction. Replays are idempotent:
// a booking that was already credited returns nil without touching anything.
func (s *Service) Credit(ctx context.Context, bookingID string) error {
	if bookingID == "" {
		return fmt.Errorf("referral: missing booking id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("referral: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetBookingForUpdate(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if !b.Status.Counted() {
		return ErrBookingNotCounted
	}
	if b.ReferralCode == nil || *b.ReferralCode == "" {
		return ErrNoReferralCode
	}

	agent, err := s.repo.GetAgentByCodeTx(ctx, tx, *b.ReferralCode)
	if err != nil {
		return err
	}

	c := Commission{
		ID:        s.idGenerator(),
		AgentID:   agent.UserID,
		BookingID: b.ID,
		Amount:    s.policy.Commission(b.BookingFee),
		Status:    CommissionCredited,
	}

	if err := s.repo.InsertCommission(ctx, tx, c); err != nil {
		if errors.Is(err, ErrAlreadyCredited) {
			return nil
		}
		return err
	}

	if err := s.repo.ApplyCredit(ctx, tx, agent.UserID, c.Amount); err != nil {
		return err
	}

	payload := map[string]any{
		"commission_id": c.ID,
		"agent_id":      c.AgentID,
		"booking_id":    c.BookingID,
		"amount":        c.Amount,
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicCommissionCredited, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("referral: commit tx: %w", err)
	}

	return nil
}

// MarkPaidOut settles a credited commission. Already settled commissions are
// a no-op so payout runs can be replayed safely.
func (s *Service) MarkPaidOut(ctx context.Context, commissionID string) error {
	if commissionID == "" {
		return fmt.Errorf("referral: missing commission id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("referral: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetCommissionForUpdate(ctx, tx, commissionID)
	if err != nil {
		return err
	}
	if c.Status == CommissionPaidOut {
		return nil
	}

	if err := s.repo.SettlePayout(ctx, tx, c.ID, c.AgentID, c.Amount, s.now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("referral: commit tx: %w", err)
	}

	return nil
}

// ListForAgent returns an agent's commissions, newest first.
func (s *Service) ListForAgent(ctx context.Context, agentID string, limit int) ([]Commission, error) {
	return s.repo.ListForAgent(ctx, agentID, limit)
}
