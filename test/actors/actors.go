package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"poultryflow/auth"
	"poultryflow/booking"
	"poultryflow/referral"
	"poultryflow/role"
)

// tolerable reports whether an error is an expected outcome under contention
// rather than a harness failure.
func tolerable(err error, expected ...error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505", "57P01":
			return true
		}
	}
	// Connection kills from the chaos goroutine surface as closed conns.
	msg := err.Error()
	return strings.Contains(msg, "conn closed") || strings.Contains(msg, "unexpected EOF")
}

// Booker creates bookings for random products, half of them carrying the
// referral code.
func Booker(ctx context.Context, svc *booking.Service, customerID string, productIDs []string, referralCode string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		params := booking.CreateParams{
			CustomerID:   customerID,
			ProductID:    productIDs[rand.Intn(len(productIDs))],
			Quantity:     1 + rand.Intn(20),
			ContactName:  "Stress Customer",
			ContactPhone: fmt.Sprintf("+2217700%05d", rand.Intn(100000)),
		}
		if i%2 == 0 {
			code := referralCode
			params.ReferralCode = &code
		}

		if _, err := svc.Create(ctx, params); err != nil && !tolerable(err, booking.ErrProductInactive) {
			return fmt.Errorf("booker: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Transitioner picks a random unfinished booking and tries to advance it one
// step with a compare-and-set precondition. Lost races surface as
// ErrStatusConflict or ErrInvalidTransition and are expected.
func Transitioner(ctx context.Context, pool *pgxpool.Pool, svc *booking.Service, actorID string, stop <-chan struct{}) error {
	next := map[booking.Status]booking.Status{
		booking.StatusPending:   booking.StatusCalled,
		booking.StatusCalled:    booking.StatusAllocated,
		booking.StatusAllocated: booking.StatusCompleted,
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var (
			id     string
			status booking.Status
		)
		err := pool.QueryRow(ctx,
			`SELECT id, status::text FROM bookings WHERE status <> 'completed' ORDER BY random() LIMIT 1`).
			Scan(&id, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				time.Sleep(20 * time.Millisecond)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transitioner pick: %w", err)
		}

		_, err = svc.Transition(ctx, booking.TransitionParams{
			BookingID:      id,
			ActorID:        actorID,
			ExpectedStatus: status,
			NextStatus:     next[status],
		})
		if err != nil && !tolerable(err, booking.ErrStatusConflict, booking.ErrInvalidTransition, booking.ErrNotFound) {
			return fmt.Errorf("transitioner: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// RoleFlipper cycles a user through roles to contend on the marker tables.
// Serialization losses and referral code collisions are expected.
func RoleFlipper(ctx context.Context, svc *role.Service, actorID, targetUserID string, stop <-chan struct{}) error {
	roles := []auth.Role{auth.RoleAgent, auth.RoleManager, auth.RoleAgent, auth.RoleCEO, auth.RoleCustomer}

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		err := svc.ChangeRole(ctx, role.ChangeRoleParams{
			ActorID: actorID,
			UserID:  targetUserID,
			NewRole: roles[i%len(roles)],
		})
		if err != nil && !tolerable(err, role.ErrStateConflict, role.ErrReferralCodeTaken) {
			return fmt.Errorf("role flipper: %w", err)
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// CreditWorker drains commission.credit_requested outbox entries with SKIP
// LOCKED and runs the crediting transaction for each.
func CreditWorker(ctx context.Context, pool *pgxpool.Pool, svc *referral.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("credit worker begin: %w", err)
		}
		rows, err := tx.Query(ctx, `
			SELECT id, payload->>'booking_id' FROM outbox
			WHERE status = 'pending' AND topic = $1
			ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`,
			booking.OutboxTopicCreditRequested)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		type entry struct{ id, bookingID string }
		entries := make([]entry, 0, 10)
		for rows.Next() {
			var e entry
			_ = rows.Scan(&e.id, &e.bookingID)
			entries = append(entries, e)
		}
		rows.Close()

		for _, e := range entries {
			err := svc.Credit(ctx, e.bookingID)
			if err != nil && !tolerable(err, referral.ErrCodeNotFound, referral.ErrBookingNotCounted, referral.ErrNoReferralCode) {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("credit worker: %w", err)
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status = 'processed', attempts = attempts + 1 WHERE id = $1`, e.id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
