package role

import (
	"time"

	"poultryflow/auth"
)

// Marker identifies one of the role-marker record families. For any user at
// most one marker exists, and it matches the users.role column.
type Marker string

const (
	MarkerManager Marker = "manager"
	MarkerCEO     Marker = "ceo"
	MarkerAgent   Marker = "agent_profile"
)

// allMarkers is the deletion candidate set for a role change.
var allMarkers = []Marker{MarkerManager, MarkerCEO, MarkerAgent}

// markerFor maps a role to the marker record it requires, if any.
// Customers carry no marker.
func markerFor(r auth.Role) (Marker, bool) {
	switch r {
	case auth.RoleManager:
		return MarkerManager, true
	case auth.RoleCEO:
		return MarkerCEO, true
	case auth.RoleAgent:
		return MarkerAgent, true
	}
	return "", false
}

// AgentProfile is the referral-earning record attached to users with the
// agent role. Amounts are integers in the smallest practical unit.
type AgentProfile struct {
	UserID           string
	ReferralCode     string
	TotalCommission  int64
	AvailableBalance int64
	BookingCount     int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
