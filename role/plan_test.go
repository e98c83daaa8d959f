package role

import (
	"context"
	"errors"
	"testing"

	"poultryflow/auth"
)

func hasMarker(deletes []Marker, m Marker) bool {
	for _, d := range deletes {
		if d == m {
			return true
		}
	}
	return false
}

func TestCompute_CustomerToAgent(t *testing.T) {
	plan, err := Compute("a1b2c3d4-0000", "Moussa Diallo", auth.RoleCustomer, auth.RoleAgent)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if plan.AgentReferralCode != "MOUSSAa1b2" {
		t.Fatalf("expected referral code MOUSSAa1b2, got %q", plan.AgentReferralCode)
	}
	if plan.CreateManager || plan.CreateCEO {
		t.Fatal("agent change must not create staff markers")
	}
	if !hasMarker(plan.Deletes, MarkerManager) || !hasMarker(plan.Deletes, MarkerCEO) {
		t.Fatalf("expected stale staff markers deleted, got %v", plan.Deletes)
	}
	if hasMarker(plan.Deletes, MarkerAgent) {
		t.Fatal("agent marker must not be deleted when becoming agent")
	}
}

func TestCompute_AgentToManager(t *testing.T) {
	plan, err := Compute("user-1", "Moussa Diallo", auth.RoleAgent, auth.RoleManager)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if !plan.CreateManager {
		t.Fatal("expected manager marker creation")
	}
	if plan.AgentReferralCode != "" {
		t.Fatal("expected no agent profile for manager")
	}
	if !hasMarker(plan.Deletes, MarkerAgent) || !hasMarker(plan.Deletes, MarkerCEO) {
		t.Fatalf("expected agent and ceo markers deleted, got %v", plan.Deletes)
	}
}

func TestCompute_ManagerToCustomer(t *testing.T) {
	plan, err := Compute("user-1", "Moussa Diallo", auth.RoleManager, auth.RoleCustomer)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if plan.CreateManager || plan.CreateCEO || plan.AgentReferralCode != "" {
		t.Fatal("customer requires no marker records")
	}
	if len(plan.Deletes) != 3 {
		t.Fatalf("expected all three marker families deleted, got %v", plan.Deletes)
	}
}

func TestCompute_ExactlyOneMarkerPlanned(t *testing.T) {
	roles := []auth.Role{auth.RoleCustomer, auth.RoleAgent, auth.RoleManager, auth.RoleCEO}

	for _, from := range roles {
		for _, to := range roles {
			plan, err := Compute("user-1", "Fatou Ba", from, to)
			if err != nil {
				t.Fatalf("compute %s -> %s: %v", from, to, err)
			}

			created := 0
			if plan.CreateManager {
				created++
			}
			if plan.CreateCEO {
				created++
			}
			if plan.AgentReferralCode != "" {
				created++
			}

			want := 1
			if to == auth.RoleCustomer {
				want = 0
			}
			if created != want {
				t.Fatalf("%s -> %s: expected %d created markers, got %d", from, to, want, created)
			}

			// Every marker family is either deleted or (for non-customers)
			// the one being created; nothing is left unaccounted for.
			if len(plan.Deletes)+created != len(allMarkers) {
				t.Fatalf("%s -> %s: plan leaves markers unaccounted: %+v", from, to, plan)
			}
		}
	}
}

func TestCompute_UnknownRole(t *testing.T) {
	if _, err := Compute("user-1", "Fatou Ba", auth.RoleCustomer, auth.Role("admin")); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestReferralCode(t *testing.T) {
	cases := []struct {
		name        string
		displayName string
		userID      string
		want        string
	}{
		{"two tokens", "Moussa Diallo", "a1b2c3", "MOUSSAa1b2"},
		{"single token", "Fatou", "9f8e7d6c", "FATOU9f8e"},
		{"surrounding space", "  Awa Ndiaye ", "12345678", "AWA1234"},
		{"short user id", "Omar Sy", "ab", "OMARab"},
		{"empty name", "", "12345678", "1234"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReferralCode(tc.displayName, tc.userID); got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestChangeRole_RejectsSelf(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.ChangeRole(context.Background(), ChangeRoleParams{
		ActorID: "user-1",
		UserID:  "user-1",
		NewRole: auth.RoleManager,
	})
	if !errors.Is(err, ErrSelfRoleChange) {
		t.Fatalf("expected ErrSelfRoleChange, got %v", err)
	}
}

func TestChangeRole_RejectsUnknownRole(t *testing.T) {
	svc := NewService(nil, nil)

	err := svc.ChangeRole(context.Background(), ChangeRoleParams{
		ActorID: "boss-1",
		UserID:  "user-1",
		NewRole: auth.Role("superuser"),
	})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}
