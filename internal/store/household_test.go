package store

import (
	"context"
	"testing"

	"github.com/dukerupert/homewise/internal/model"
)

func setupHouseholdTestDB(t *testing.T) (*HouseholdStore, *UserStore) {
	t.Helper()
	db := setupTestDB(t)
	return NewHouseholdStore(db), NewUserStore(db)
}

func TestHouseholdCreate(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	owner := createTestUser(t, us, "alice@example.com", "Alice")

	h, err := hs.Create(context.Background(), "Doe's Home", owner.ID)
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h == nil {
		t.Fatal("expected household, got nil")
	}
	if h.Name != "Doe's Home" {
		t.Errorf("name = %q, want %q", h.Name, "Doe's Home")
	}
	if h.OwnerID != owner.ID {
		t.Errorf("owner_id = %q, want %q", h.OwnerID, owner.ID)
	}
	if h.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestHouseholdGetByIDNotFound(t *testing.T) {
	hs, _ := setupHouseholdTestDB(t)

	h, err := hs.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if h != nil {
		t.Error("expected nil for nonexistent household")
	}
}

func TestHouseholdLookup(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, us, "alice@example.com", "Alice")
	member := createTestUser(t, us, "bob@example.com", "Bob")
	stranger := createTestUser(t, us, "carol@example.com", "Carol")

	h, _ := hs.Create(ctx, "Doe's Home", owner.ID)
	hs.AddMember(ctx, h.ID, owner.ID, model.RoleAdult)
	hs.AddMember(ctx, h.ID, member.ID, model.RoleChild)

	t.Run("owner", func(t *testing.T) {
		m, err := hs.Lookup(ctx, owner.ID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if m.Kind != model.MembershipOwned {
			t.Errorf("kind = %s, want owned", m.Kind)
		}
		if m.Household.ID != h.ID {
			t.Errorf("household id = %d, want %d", m.Household.ID, h.ID)
		}
		if m.Member == nil || m.Member.Role != model.RoleAdult {
			t.Errorf("member = %+v, want adult membership", m.Member)
		}
	})

	t.Run("member", func(t *testing.T) {
		m, err := hs.Lookup(ctx, member.ID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if m.Kind != model.MembershipMember {
			t.Errorf("kind = %s, want memberOf", m.Kind)
		}
		if m.Member == nil || m.Member.Role != model.RoleChild {
			t.Errorf("member = %+v, want child membership", m.Member)
		}
	})

	t.Run("none", func(t *testing.T) {
		m, err := hs.Lookup(ctx, stranger.ID)
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if m.Kind != model.MembershipNone {
			t.Errorf("kind = %s, want none", m.Kind)
		}
		if m.Household != nil {
			t.Error("expected nil household")
		}
	})
}

func TestHouseholdLookupPrefersOwned(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	bob := createTestUser(t, us, "bob@example.com", "Bob")

	bobs, _ := hs.Create(ctx, "Bob's Home", bob.ID)
	hs.AddMember(ctx, bobs.ID, alice.ID, model.RoleAdult)
	alices, _ := hs.Create(ctx, "Alice's Home", alice.ID)

	m, err := hs.Lookup(ctx, alice.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if m.Kind != model.MembershipOwned || m.Household.ID != alices.ID {
		t.Errorf("got %s household %d, want owned %d", m.Kind, m.Household.ID, alices.ID)
	}
}

func TestHouseholdUpdate(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	bob := createTestUser(t, us, "bob@example.com", "Bob")
	h, _ := hs.Create(ctx, "Old Name", alice.ID)

	updated, err := hs.Update(ctx, h.ID, "New Name", bob.ID)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("name = %q, want %q", updated.Name, "New Name")
	}
	if updated.OwnerID != bob.ID {
		t.Errorf("owner_id = %q, want %q", updated.OwnerID, bob.ID)
	}
}

func TestHouseholdDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	hs, us, is := NewHouseholdStore(db), NewUserStore(db), NewInviteStore(db)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	bob := createTestUser(t, us, "bob@example.com", "Bob")

	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)
	hs.AddMember(ctx, h.ID, alice.ID, model.RoleAdult)
	hs.AddMember(ctx, h.ID, bob.ID, model.RoleAdult)
	is.Create(ctx, h.ID, "tok-1", "carol@example.com", model.RoleChild)

	ok, err := hs.Delete(ctx, h.ID, bob.ID)
	if err != nil {
		t.Fatalf("delete as non-owner: %v", err)
	}
	if ok {
		t.Fatal("non-owner must not delete the household")
	}

	ok, err = hs.Delete(ctx, h.ID, alice.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Fatal("expected household to be deleted")
	}

	var members, invites int
	db.Get(&members, `SELECT COUNT(*) FROM household_members WHERE household_id = ?`, h.ID)
	db.Get(&invites, `SELECT COUNT(*) FROM household_invites WHERE household_id = ?`, h.ID)
	if members != 0 {
		t.Errorf("members = %d, want 0", members)
	}
	if invites != 0 {
		t.Errorf("invites = %d, want 0", invites)
	}
}

func TestHouseholdMembers(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	bob := createTestUser(t, us, "bob@example.com", "Bob")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)

	hs.AddMember(ctx, h.ID, alice.ID, model.RoleAdult)
	bm, err := hs.AddMember(ctx, h.ID, bob.ID, model.RoleChild)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	members, err := hs.ListMembers(ctx, h.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len = %d, want 2", len(members))
	}
	if members[0].User.Email != "alice@example.com" {
		t.Errorf("first member = %q, want alice", members[0].User.Email)
	}
	if members[1].Role != model.RoleChild || members[1].User.Name != "Bob" {
		t.Errorf("second member = %+v", members[1])
	}

	updated, err := hs.UpdateMemberRole(ctx, bm.ID, model.RoleExternal)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != model.RoleExternal {
		t.Errorf("role = %q, want external", updated.Role)
	}

	if err := hs.RemoveMember(ctx, bm.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if m, _ := hs.GetMemberByID(ctx, bm.ID); m != nil {
		t.Error("expected member to be removed")
	}
}

func TestHouseholdMemberUnique(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)

	if _, err := hs.AddMember(ctx, h.ID, alice.ID, model.RoleAdult); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := hs.AddMember(ctx, h.ID, alice.ID, model.RoleChild); err == nil {
		t.Fatal("expected unique violation for duplicate membership")
	}
}

func TestHouseholdMemberRoleConstraint(t *testing.T) {
	hs, us := setupHouseholdTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, us, "alice@example.com", "Alice")
	h, _ := hs.Create(ctx, "Doe's Home", alice.ID)

	if _, err := hs.AddMember(ctx, h.ID, alice.ID, "overlord"); err == nil {
		t.Fatal("expected check constraint failure for unknown role")
	}
}
