package booking

import "time"

// Status is the booking lifecycle state. Transitions only ever move one step
// forward through the ordered list; same-status requests are no-ops.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCalled    Status = "called"
	StatusAllocated Status = "allocated"
	StatusCompleted Status = "completed"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusCalled:    1,
	StatusAllocated: 2,
	StatusCompleted: 3,
}

// Known reports whether the status is one of the lifecycle values.
func (s Status) Known() bool {
	_, ok := statusRank[s]
	return ok
}

// Counted reports whether the status qualifies the booking for commission
// crediting.
func (s Status) Counted() bool {
	return s == StatusAllocated || s == StatusCompleted
}

// Booking is the domain representation of a reservation. BookingFee is frozen
// at creation time and never rewritten.
type Booking struct {
	ID                 string
	CustomerID         string
	ProductID          string
	Quantity           int
	BookingFee         int64
	ContactName        string
	ContactPhone       string
	ReferralCode       *string
	Status             Status
	StaffNote          *string
	ExpectedCollection *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Event captures an immutable business event for a booking.
type Event struct {
	ID        int64
	BookingID string
	Type      string
	ActorID   *string
	Payload   []byte
	CreatedAt time.Time
}

const (
	EventBookingCreated       = "BOOKING_CREATED"
	EventBookingStatusChanged = "BOOKING_STATUS_CHANGED"

	// OutboxTopicCreditRequested is published when a booking with a referral
	// code first enters a counted status. The commission ledger consumes it.
	OutboxTopicCreditRequested = "commission.credit_requested"
)
