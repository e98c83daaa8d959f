package referral

import "time"

// CommissionStatus is the commission lifecycle: credited when a referred
// booking is counted, paid_out once the payout process settles it.
type CommissionStatus string

const (
	CommissionCredited CommissionStatus = "credited"
	CommissionPaidOut  CommissionStatus = "paid_out"
)

// Commission is the amount owed to an agent for a referred booking.
// Exactly one commission can exist per booking.
type Commission struct {
	ID        string
	AgentID   string
	BookingID string
	Amount    int64
	Status    CommissionStatus
	CreatedAt time.Time
	PaidOutAt *time.Time
}

const (
	// OutboxTopicCommissionCredited is published when a commission entry is
	// created, for downstream notification and reporting consumers.
	OutboxTopicCommissionCredited = "commission.credited"
)
