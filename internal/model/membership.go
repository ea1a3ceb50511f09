package model

// MembershipKind tags how a user relates to a household.
type MembershipKind int

const (
	MembershipNone MembershipKind = iota
	MembershipOwned
	MembershipMember
)

func (k MembershipKind) String() string {
	switch k {
	case MembershipOwned:
		return "owned"
	case MembershipMember:
		return "memberOf"
	default:
		return "none"
	}
}

// Membership is the result of a household lookup for one user. Household and
// Member are nil when Kind is MembershipNone. Owners are also members, so
// Member is set for MembershipOwned too when the owner row exists.
type Membership struct {
	Kind      MembershipKind
	Household *Household
	Member    *HouseholdMember
}

func (m Membership) IsOwner() bool { return m.Kind == MembershipOwned }

func (m Membership) HasHousehold() bool { return m.Kind != MembershipNone }
