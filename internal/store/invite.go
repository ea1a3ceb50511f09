package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/jmoiron/sqlx"
)

// InviteStore persists household invites. Invites are never deleted by the
// application: they move from pending to accepted or revoked and stay as
// history until the household itself is deleted.
type InviteStore struct {
	db database.Querier
}

func NewInviteStore(db database.Querier) *InviteStore {
	return &InviteStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *InviteStore) WithTx(tx *sqlx.Tx) *InviteStore {
	return &InviteStore{db: tx}
}

const inviteCols = `id, household_id, token, email, role, status, claimed, resolved_by, resolved_at, created_at, updated_at`

// Create inserts a pending invite. It returns (nil, nil) if the insert yields no row.
func (s *InviteStore) Create(ctx context.Context, householdID int64, token, email, role string) (*model.HouseholdInvite, error) {
	ts := now()
	inv, err := get[model.HouseholdInvite](ctx, s.db,
		`INSERT INTO household_invites (household_id, token, email, role, status, claimed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+inviteCols,
		householdID, token, NormalizeEmail(email), role, model.InviteStatusPending, false, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	return inv, nil
}

func (s *InviteStore) GetByID(ctx context.Context, id int64) (*model.HouseholdInvite, error) {
	inv, err := get[model.HouseholdInvite](ctx, s.db, `SELECT `+inviteCols+` FROM household_invites WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// GetPending returns the pending invite matching both id and token.
func (s *InviteStore) GetPending(ctx context.Context, id int64, token string) (*model.HouseholdInvite, error) {
	inv, err := get[model.HouseholdInvite](ctx, s.db,
		`SELECT `+inviteCols+` FROM household_invites WHERE id = ? AND token = ? AND status = ?`,
		id, token, model.InviteStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending invite: %w", err)
	}
	return inv, nil
}

type inviteDetailsRow struct {
	model.HouseholdInvite
	HHID        int64     `db:"hh_id"`
	HHName      string    `db:"hh_name"`
	HHOwnerID   string    `db:"hh_owner_id"`
	HHCreatedAt time.Time `db:"hh_created_at"`
	HHUpdatedAt time.Time `db:"hh_updated_at"`
	OwnerName   string    `db:"owner_name"`
	OwnerEmail  string    `db:"owner_email"`
	OwnerImage  string    `db:"owner_image"`
}

// GetDetailsByToken loads a pending invite together with its household and
// the household owner's public profile.
func (s *InviteStore) GetDetailsByToken(ctx context.Context, token string) (*model.InviteDetails, error) {
	row, err := get[inviteDetailsRow](ctx, s.db,
		`SELECT i.id, i.household_id, i.token, i.email, i.role, i.status, i.claimed,
		        i.resolved_by, i.resolved_at, i.created_at, i.updated_at,
		        h.id AS hh_id, h.name AS hh_name, h.owner_id AS hh_owner_id,
		        h.created_at AS hh_created_at, h.updated_at AS hh_updated_at,
		        u.name AS owner_name, u.email AS owner_email, u.image AS owner_image
		 FROM household_invites i
		 JOIN households h ON h.id = i.household_id
		 JOIN users u ON u.id = h.owner_id
		 WHERE i.token = ? AND i.status = ?`,
		token, model.InviteStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("get invite details: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	return &model.InviteDetails{
		HouseholdInvite: row.HouseholdInvite,
		Household: model.InviteHousehold{
			Household: model.Household{
				ID:        row.HHID,
				Name:      row.HHName,
				OwnerID:   row.HHOwnerID,
				CreatedAt: row.HHCreatedAt,
				UpdatedAt: row.HHUpdatedAt,
			},
			Owner: model.InviteOwner{
				ID:    row.HHOwnerID,
				Name:  row.OwnerName,
				Email: row.OwnerEmail,
				Image: row.OwnerImage,
			},
		},
	}, nil
}

// ListPending returns the household's pending invites, newest first.
func (s *InviteStore) ListPending(ctx context.Context, householdID int64) ([]model.HouseholdInvite, error) {
	invites, err := list[model.HouseholdInvite](ctx, s.db,
		`SELECT `+inviteCols+` FROM household_invites
		 WHERE household_id = ? AND status = ?
		 ORDER BY created_at DESC, id DESC`,
		householdID, model.InviteStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending invites: %w", err)
	}
	return invites, nil
}

// Accept moves a pending invite to accepted, recording who claimed it.
// It reports false when the invite was no longer pending.
func (s *InviteStore) Accept(ctx context.Context, id int64, userID string) (bool, error) {
	return s.resolve(ctx, id, model.InviteStatusAccepted, true, userID)
}

// Revoke moves a pending invite to revoked. It reports false when the
// invite was no longer pending.
func (s *InviteStore) Revoke(ctx context.Context, id int64, userID string) (bool, error) {
	return s.resolve(ctx, id, model.InviteStatusRevoked, false, userID)
}

func (s *InviteStore) resolve(ctx context.Context, id int64, status string, claimed bool, userID string) (bool, error) {
	ts := now()
	n, err := exec(ctx, s.db,
		`UPDATE household_invites
		 SET status = ?, claimed = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		status, claimed, userID, ts, ts, id, model.InviteStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("resolve invite: %w", err)
	}
	return n > 0, nil
}
