package role

import (
	"errors"
	"fmt"
	"strings"

	"poultryflow/auth"
)

var (
	// ErrUnknownRole signals a role outside the known set.
	ErrUnknownRole = errors.New("role: unknown role")
)

// Plan is the complete mutation set re-establishing the one-marker invariant
// for a role change. It is computed without I/O and executed as a single
// atomic unit by the service; a partially applied plan is never valid.
type Plan struct {
	UserID  string
	NewRole auth.Role

	// Deletes lists the marker families to remove. Upserts below re-create
	// whichever marker the new role requires, so deleting then creating the
	// same marker is simplified away here.
	Deletes []Marker

	CreateManager bool
	CreateCEO     bool

	// AgentReferralCode is set when an agent profile must exist after the
	// change. The executor checks the code for uniqueness before commit.
	AgentReferralCode string
}

// Compute derives the mutation plan for moving a user from currentRole to
// newRole. It is idempotent: planning a change to the current role yields
// upserts that repair any drift without deleting the active marker.
func Compute(userID, displayName string, currentRole, newRole auth.Role) (Plan, error) {
	if userID == "" {
		return Plan{}, fmt.Errorf("role: missing user id")
	}
	if !newRole.Valid() {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownRole, newRole)
	}
	if currentRole != "" && !currentRole.Valid() {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownRole, currentRole)
	}

	keep, hasKeep := markerFor(newRole)

	plan := Plan{
		UserID:  userID,
		NewRole: newRole,
	}

	for _, m := range allMarkers {
		if hasKeep && m == keep {
			continue
		}
		plan.Deletes = append(plan.Deletes, m)
	}

	switch keep {
	case MarkerManager:
		plan.CreateManager = true
	case MarkerCEO:
		plan.CreateCEO = true
	case MarkerAgent:
		plan.AgentReferralCode = ReferralCode(displayName, userID)
	}

	return plan, nil
}

// ReferralCode derives an agent's referral code from the first token of the
// display name and a prefix of the user id. Derivation alone does not
// guarantee uniqueness; the executor verifies the code is unused inside the
// same transaction before committing.
func ReferralCode(displayName, userID string) string {
	name := strings.TrimSpace(displayName)
	token := name
	if i := strings.IndexAny(name, " \t"); i > 0 {
		token = name[:i]
	}

	idPrefix := userID
	if len(idPrefix) > 4 {
		idPrefix = idPrefix[:4]
	}

	return strings.ToUpper(token) + idPrefix
}
