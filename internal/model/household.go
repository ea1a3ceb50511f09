package model

import "time"

// Household member roles.
const (
	RoleAdult    = "adult"
	RoleChild    = "child"
	RolePet      = "pet"
	RoleExternal = "external"
)

var Roles = []string{RoleAdult, RoleChild, RolePet, RoleExternal}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Household struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type HouseholdMember struct {
	ID          int64     `db:"id" json:"id"`
	HouseholdID int64     `db:"household_id" json:"household_id"`
	UserID      string    `db:"user_id" json:"user_id"`
	Role        string    `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// MemberUser is the slice of a user exposed alongside a membership.
type MemberUser struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
}

type MemberWithUser struct {
	ID   int64      `json:"id"`
	Role string     `json:"role"`
	User MemberUser `json:"user"`
}

// HouseholdWithMembers is the read model returned by GET /households/my.
type HouseholdWithMembers struct {
	Household
	Members []MemberWithUser `json:"members"`
}
