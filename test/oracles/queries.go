package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against a live database while the
// actors are interleaving. Every query must return zero rows.
func All() []Oracle {
	return []Oracle{
		{
			// users.role must agree with the marker tables: exactly the one
			// matching marker row, no strays.
			Name: "O1_role_marker_consistency",
			SQL: `SELECT u.id, u.role::text,
                         (m.user_id IS NOT NULL) AS has_manager,
                         (c.user_id IS NOT NULL) AS has_ceo,
                         (a.user_id IS NOT NULL) AS has_agent
                  FROM users u
                  LEFT JOIN roles_manager m ON m.user_id = u.id
                  LEFT JOIN roles_ceo c ON c.user_id = u.id
                  LEFT JOIN agents a ON a.user_id = u.id
                  WHERE (u.role = 'manager') <> (m.user_id IS NOT NULL)
                     OR (u.role = 'ceo') <> (c.user_id IS NOT NULL)
                     OR (u.role = 'agent') <> (a.user_id IS NOT NULL)`,
		},
		{
			// The frozen booking fee must match what the creation event
			// recorded, no matter how many transitions ran since.
			Name: "O2_frozen_booking_fee",
			SQL: `SELECT b.id, b.booking_fee, e.payload->>'booking_fee' AS created_fee
                  FROM bookings b
                  JOIN booking_events e ON e.booking_id = b.id AND e.type = 'BOOKING_CREATED'
                  WHERE b.booking_fee <> (e.payload->>'booking_fee')::bigint`,
		},
		{
			// Status-changed events must each advance the ordinal by one.
			Name: "O3_single_step_transitions",
			SQL: `WITH ranks(status, rank) AS (
                      VALUES ('pending', 0), ('called', 1), ('allocated', 2), ('completed', 3)
                  )
                  SELECT e.id, e.booking_id, e.payload
                  FROM booking_events e
                  JOIN ranks prev ON prev.status = e.payload->>'previous_status'
                  JOIN ranks next ON next.status = e.payload->>'next_status'
                  WHERE e.type = 'BOOKING_STATUS_CHANGED' AND next.rank <> prev.rank + 1`,
		},
		{
			// At most one commission per booking, only for counted bookings
			// that carried a referral code.
			Name: "O4_commission_linkage",
			SQL: `SELECT cm.id, cm.booking_id
                  FROM commissions cm
                  JOIN bookings b ON b.id = cm.booking_id
                  WHERE b.status NOT IN ('allocated', 'completed')
                     OR b.referral_code IS NULL`,
		},
		{
			// An agent's running total equals the sum of credited ledger rows
			// since the profile row was (re)created.
			Name: "O5_agent_totals",
			SQL: `SELECT a.user_id, a.total_commission, COALESCE(SUM(cm.amount), 0) AS ledger_sum
                  FROM agents a
                  LEFT JOIN commissions cm ON cm.agent_id = a.user_id AND cm.created_at >= a.created_at
                  GROUP BY a.user_id, a.total_commission
                  HAVING a.total_commission <> COALESCE(SUM(cm.amount), 0)`,
		},
		{
			// Paid-out balance never exceeds what was credited.
			Name: "O6_balance_bounded",
			SQL:  `SELECT user_id FROM agents WHERE available_balance > total_commission OR available_balance < 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
