package store

import (
	"context"
	"testing"

	"github.com/dukerupert/homewise/internal/model"
)

func setupInviteTestDB(t *testing.T) (*InviteStore, *HouseholdStore, *UserStore) {
	t.Helper()
	db := setupTestDB(t)
	return NewInviteStore(db), NewHouseholdStore(db), NewUserStore(db)
}

func TestInviteCreate(t *testing.T) {
	is, hs, us := setupInviteTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)

	inv, err := is.Create(ctx, h.ID, "tok-1", "B@Test.com", model.RoleAdult)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if inv.Status != model.InviteStatusPending {
		t.Errorf("status = %q, want pending", inv.Status)
	}
	if inv.Email != "b@test.com" {
		t.Errorf("email = %q, want b@test.com", inv.Email)
	}
	if inv.Claimed {
		t.Error("new invite should not be claimed")
	}
	if inv.ResolvedBy != nil || inv.ResolvedAt != nil {
		t.Error("new invite should not be resolved")
	}
}

func TestInviteTokenUnique(t *testing.T) {
	is, hs, us := setupInviteTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)

	if _, err := is.Create(ctx, h.ID, "tok-1", "b@test.com", model.RoleAdult); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := is.Create(ctx, h.ID, "tok-1", "c@test.com", model.RoleAdult); err == nil {
		t.Fatal("expected duplicate token error")
	}
}

func TestInviteGetDetailsByToken(t *testing.T) {
	is, hs, us := setupInviteTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)
	is.Create(ctx, h.ID, "tok-1", "b@test.com", model.RoleChild)

	d, err := is.GetDetailsByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get details: %v", err)
	}
	if d == nil {
		t.Fatal("expected details, got nil")
	}
	if d.Role != model.RoleChild {
		t.Errorf("role = %q, want child", d.Role)
	}
	if d.Household.Name != "Doe's Home" {
		t.Errorf("household name = %q", d.Household.Name)
	}
	if d.Household.Owner.Email != "alice@example.com" || d.Household.Owner.Name != "Alice" {
		t.Errorf("owner = %+v", d.Household.Owner)
	}

	missing, err := is.GetDetailsByToken(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestInviteAcceptIsSingleUse(t *testing.T) {
	is, hs, us := setupInviteTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	bob := createTestUser(t, us, "bob@example.com", "Bob")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)
	inv, _ := is.Create(ctx, h.ID, "tok-1", "bob@example.com", model.RoleAdult)

	ok, err := is.Accept(ctx, inv.ID, bob.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !ok {
		t.Fatal("first accept should succeed")
	}

	ok, err = is.Accept(ctx, inv.ID, bob.ID)
	if err != nil {
		t.Fatalf("second accept: %v", err)
	}
	if ok {
		t.Error("second accept should not resolve the invite again")
	}

	got, _ := is.GetByID(ctx, inv.ID)
	if got.Status != model.InviteStatusAccepted {
		t.Errorf("status = %q, want accepted", got.Status)
	}
	if !got.Claimed {
		t.Error("accepted invite should be claimed")
	}
	if got.ResolvedBy == nil || *got.ResolvedBy != bob.ID {
		t.Errorf("resolved_by = %v, want %s", got.ResolvedBy, bob.ID)
	}
	if got.ResolvedAt == nil {
		t.Error("expected resolved_at")
	}

	if p, _ := is.GetPending(ctx, inv.ID, "tok-1"); p != nil {
		t.Error("accepted invite must not be pending")
	}
	if d, _ := is.GetDetailsByToken(ctx, "tok-1"); d != nil {
		t.Error("accepted invite must not be readable by token")
	}
}

func TestInviteRevokeKeepsHistory(t *testing.T) {
	is, hs, us := setupInviteTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)
	inv, _ := is.Create(ctx, h.ID, "tok-1", "b@test.com", model.RoleAdult)
	is.Create(ctx, h.ID, "tok-2", "c@test.com", model.RolePet)

	ok, err := is.Revoke(ctx, inv.ID, alice.ID)
	if err != nil || !ok {
		t.Fatalf("revoke: ok=%v err=%v", ok, err)
	}

	pending, err := is.ListPending(ctx, h.ID)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Token != "tok-2" {
		t.Errorf("pending = %+v, want only tok-2", pending)
	}

	got, _ := is.GetByID(ctx, inv.ID)
	if got.Status != model.InviteStatusRevoked {
		t.Errorf("status = %q, want revoked", got.Status)
	}
	if got.Claimed {
		t.Error("revoked invite should not be claimed")
	}
}
