package role

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"poultryflow/auth"
)

// TestRoleSync_Integration connects to a real PostgreSQL via DATABASE_URL and
// verifies that every role change leaves exactly the one matching marker row,
// end to end through the serializable transaction.
func TestRoleSync_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'agents')`).Scan(&exists); err != nil || !exists {
		t.Skip("database schema missing; apply migrations/ against $DATABASE_URL first")
	}

	nonce := time.Now().UnixNano()
	var actorID, targetID string
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash, role) VALUES ($1, 'Ceo Itest', 'x', 'ceo') RETURNING id`,
		fmt.Sprintf("ceo+%d@example.com", nonce)).Scan(&actorID); err != nil {
		t.Fatalf("seed actor: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash) VALUES ($1, 'Moussa Diallo', 'x') RETURNING id`,
		fmt.Sprintf("moussa+%d@example.com", nonce)).Scan(&targetID); err != nil {
		t.Fatalf("seed target: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM agents WHERE user_id = $1`, targetID)
		pool.Exec(ctx2, `DELETE FROM roles_manager WHERE user_id = $1`, targetID)
		pool.Exec(ctx2, `DELETE FROM roles_ceo WHERE user_id = $1`, targetID)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, actorID, targetID)
	})

	svc := NewService(pool, NewRepository(pool))

	markerCounts := func() (role string, manager, ceo, agent int) {
		t.Helper()
		err := pool.QueryRow(ctx, `
			SELECT u.role::text,
			       (SELECT COUNT(*) FROM roles_manager WHERE user_id = u.id),
			       (SELECT COUNT(*) FROM roles_ceo WHERE user_id = u.id),
			       (SELECT COUNT(*) FROM agents WHERE user_id = u.id)
			FROM users u WHERE u.id = $1`, targetID).Scan(&role, &manager, &ceo, &agent)
		if err != nil {
			t.Fatalf("read marker state: %v", err)
		}
		return role, manager, ceo, agent
	}

	change := func(newRole auth.Role) error {
		return svc.ChangeRole(ctx, ChangeRoleParams{ActorID: actorID, UserID: targetID, NewRole: newRole})
	}

	// customer -> agent: profile row with the derived referral code.
	if err := change(auth.RoleAgent); err != nil {
		t.Fatalf("promote to agent: %v", err)
	}
	role, manager, ceo, agent := markerCounts()
	if role != "agent" || manager != 0 || ceo != 0 || agent != 1 {
		t.Fatalf("after agent promotion: role=%s manager=%d ceo=%d agent=%d", role, manager, ceo, agent)
	}

	var code string
	if err := pool.QueryRow(ctx, `SELECT referral_code FROM agents WHERE user_id = $1`, targetID).Scan(&code); err != nil {
		t.Fatalf("read referral code: %v", err)
	}
	if want := ReferralCode("Moussa Diallo", targetID); code != want {
		t.Fatalf("expected referral code %q, got %q", want, code)
	}

	// agent -> manager: agent profile replaced by the manager marker.
	if err := change(auth.RoleManager); err != nil {
		t.Fatalf("promote to manager: %v", err)
	}
	role, manager, ceo, agent = markerCounts()
	if role != "manager" || manager != 1 || ceo != 0 || agent != 0 {
		t.Fatalf("after manager promotion: role=%s manager=%d ceo=%d agent=%d", role, manager, ceo, agent)
	}

	// Same role again is a harmless no-op.
	if err := change(auth.RoleManager); err != nil {
		t.Fatalf("idempotent replay: %v", err)
	}
	role, manager, ceo, agent = markerCounts()
	if role != "manager" || manager != 1 || ceo != 0 || agent != 0 {
		t.Fatalf("after replay: role=%s manager=%d ceo=%d agent=%d", role, manager, ceo, agent)
	}

	// manager -> customer: no markers at all.
	if err := change(auth.RoleCustomer); err != nil {
		t.Fatalf("demote to customer: %v", err)
	}
	role, manager, ceo, agent = markerCounts()
	if role != "customer" || manager != 0 || ceo != 0 || agent != 0 {
		t.Fatalf("after demotion: role=%s manager=%d ceo=%d agent=%d", role, manager, ceo, agent)
	}

	// Nobody changes their own role, not even the ceo.
	err = svc.ChangeRole(ctx, ChangeRoleParams{ActorID: actorID, UserID: actorID, NewRole: auth.RoleManager})
	if !errors.Is(err, ErrSelfRoleChange) {
		t.Fatalf("expected ErrSelfRoleChange, got %v", err)
	}
}
