package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserStore struct {
	db database.Querier
}

func NewUserStore(db database.Querier) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a copy of the store bound to tx.
func (s *UserStore) WithTx(tx *sqlx.Tx) *UserStore {
	return &UserStore{db: tx}
}

const userCols = `id, name, email, email_verified, image, role, password_hash, created_at, updated_at`

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserStore) Create(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	id := uuid.NewString()
	ts := now()
	_, err := exec(ctx, s.db,
		`INSERT INTO users (id, name, email, email_verified, image, role, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?, ?, ?)`,
		id, name, NormalizeEmail(email), false, model.UserRoleDefault, passwordHash, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := get[model.User](ctx, s.db, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := get[model.User](ctx, s.db, `SELECT `+userCols+` FROM users WHERE email = ?`, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, id string) error {
	if _, err := exec(ctx, s.db,
		`UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?`,
		true, now(), id,
	); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

// UpdateProfile sets the display name and avatar URL. An empty image clears it.
func (s *UserStore) UpdateProfile(ctx context.Context, id, name, image string) (*model.User, error) {
	if _, err := exec(ctx, s.db,
		`UPDATE users SET name = ?, image = ?, updated_at = ? WHERE id = ?`,
		name, image, now(), id,
	); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if _, err := exec(ctx, s.db, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
