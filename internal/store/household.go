package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/jmoiron/sqlx"
)

type HouseholdStore struct {
	db database.Querier
}

func NewHouseholdStore(db database.Querier) *HouseholdStore {
	return &HouseholdStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *HouseholdStore) WithTx(tx *sqlx.Tx) *HouseholdStore {
	return &HouseholdStore{db: tx}
}

const householdCols = `id, name, owner_id, created_at, updated_at`
const householdMemberCols = `id, household_id, user_id, role, created_at, updated_at`

// Create inserts a household. It returns (nil, nil) if the insert yields no row.
func (s *HouseholdStore) Create(ctx context.Context, name, ownerID string) (*model.Household, error) {
	ts := now()
	h, err := get[model.Household](ctx, s.db,
		`INSERT INTO households (name, owner_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		 RETURNING `+householdCols,
		name, ownerID, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByID(ctx context.Context, id int64) (*model.Household, error) {
	h, err := get[model.Household](ctx, s.db, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// Lookup resolves the household userID owns or belongs to in a single query.
// Owned households take precedence over memberships.
func (s *HouseholdStore) Lookup(ctx context.Context, userID string) (model.Membership, error) {
	row := s.db.QueryRowxContext(ctx, s.db.Rebind(
		`SELECT h.id, h.name, h.owner_id, h.created_at, h.updated_at,
		        m.id, m.role, m.created_at, m.updated_at
		 FROM households h
		 LEFT JOIN household_members m ON m.household_id = h.id AND m.user_id = ?
		 WHERE h.owner_id = ? OR m.user_id = ?
		 ORDER BY CASE WHEN h.owner_id = ? THEN 0 ELSE 1 END, h.id
		 LIMIT 1`),
		userID, userID, userID, userID,
	)

	var (
		h             model.Household
		memberID      sql.NullInt64
		memberRole    sql.NullString
		memberCreated sql.NullTime
		memberUpdated sql.NullTime
	)
	err := row.Scan(&h.ID, &h.Name, &h.OwnerID, &h.CreatedAt, &h.UpdatedAt,
		&memberID, &memberRole, &memberCreated, &memberUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Membership{Kind: model.MembershipNone}, nil
	}
	if err != nil {
		return model.Membership{}, fmt.Errorf("lookup household: %w", err)
	}

	m := model.Membership{Kind: model.MembershipMember, Household: &h}
	if h.OwnerID == userID {
		m.Kind = model.MembershipOwned
	}
	if memberID.Valid {
		m.Member = &model.HouseholdMember{
			ID:          memberID.Int64,
			HouseholdID: h.ID,
			UserID:      userID,
			Role:        memberRole.String,
			CreatedAt:   memberCreated.Time,
			UpdatedAt:   memberUpdated.Time,
		}
	}
	return m, nil
}

func (s *HouseholdStore) Update(ctx context.Context, id int64, name, ownerID string) (*model.Household, error) {
	if _, err := exec(ctx, s.db,
		`UPDATE households SET name = ?, owner_id = ?, updated_at = ? WHERE id = ?`,
		name, ownerID, now(), id,
	); err != nil {
		return nil, fmt.Errorf("update household: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes household id when it is owned by ownerID and reports
// whether a row was deleted. Members and invites go with it.
func (s *HouseholdStore) Delete(ctx context.Context, id int64, ownerID string) (bool, error) {
	n, err := exec(ctx, s.db, `DELETE FROM households WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete household: %w", err)
	}
	return n > 0, nil
}

// AddMember inserts a membership. It returns (nil, nil) if the insert yields no row.
func (s *HouseholdStore) AddMember(ctx context.Context, householdID int64, userID, role string) (*model.HouseholdMember, error) {
	ts := now()
	m, err := get[model.HouseholdMember](ctx, s.db,
		`INSERT INTO household_members (household_id, user_id, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 RETURNING `+householdMemberCols,
		householdID, userID, role, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) GetMemberByID(ctx context.Context, id int64) (*model.HouseholdMember, error) {
	m, err := get[model.HouseholdMember](ctx, s.db,
		`SELECT `+householdMemberCols+` FROM household_members WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *HouseholdStore) GetMember(ctx context.Context, householdID int64, userID string) (*model.HouseholdMember, error) {
	m, err := get[model.HouseholdMember](ctx, s.db,
		`SELECT `+householdMemberCols+` FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

type memberRow struct {
	ID        int64     `db:"id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UserID    string    `db:"user_id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
}

// ListMembers returns the household's members with their user projection,
// oldest membership first.
func (s *HouseholdStore) ListMembers(ctx context.Context, householdID int64) ([]model.MemberWithUser, error) {
	rows, err := list[memberRow](ctx, s.db,
		`SELECT m.id, m.role, m.created_at, u.id AS user_id, u.email, u.name
		 FROM household_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.household_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	members := make([]model.MemberWithUser, 0, len(rows))
	for _, r := range rows {
		members = append(members, model.MemberWithUser{
			ID:   r.ID,
			Role: r.Role,
			User: model.MemberUser{ID: r.UserID, Email: r.Email, Name: r.Name},
		})
	}
	return members, nil
}

func (s *HouseholdStore) UpdateMemberRole(ctx context.Context, id int64, role string) (*model.HouseholdMember, error) {
	if _, err := exec(ctx, s.db,
		`UPDATE household_members SET role = ?, updated_at = ? WHERE id = ?`,
		role, now(), id,
	); err != nil {
		return nil, fmt.Errorf("update member role: %w", err)
	}
	return s.GetMemberByID(ctx, id)
}

func (s *HouseholdStore) RemoveMember(ctx context.Context, id int64) error {
	if _, err := exec(ctx, s.db, `DELETE FROM household_members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}
