package model

import "time"

// Invite statuses. Accepted and revoked are terminal.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusRevoked  = "revoked"
)

type HouseholdInvite struct {
	ID          int64      `db:"id" json:"id"`
	HouseholdID int64      `db:"household_id" json:"household_id"`
	Token       string     `db:"token" json:"token"`
	Email       string     `db:"email" json:"email"`
	Role        string     `db:"role" json:"role"`
	Status      string     `db:"status" json:"status"`
	Claimed     bool       `db:"claimed" json:"claimed"`
	ResolvedBy  *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// InviteOwner is the public projection of a household owner shown to invitees.
type InviteOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image"`
}

type InviteHousehold struct {
	Household
	Owner InviteOwner `json:"owner"`
}

// InviteDetails is what an invitee sees before accepting.
type InviteDetails struct {
	HouseholdInvite
	Household InviteHousehold `json:"household"`
}
