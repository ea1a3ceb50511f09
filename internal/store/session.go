package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/google/uuid"
)

type SessionStore struct {
	db database.Querier
}

func NewSessionStore(db database.Querier) *SessionStore {
	return &SessionStore{db: db}
}

const sessionCols = `id, token, user_id, expires_at, ip_address, user_agent, created_at`

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create opens a session for userID that expires after ttl.
func (s *SessionStore) Create(ctx context.Context, userID string, ttl time.Duration, ipAddress, userAgent string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	ts := now()
	sess := &model.Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: ts.Add(ttl),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: ts,
	}
	_, err = exec(ctx, s.db,
		`INSERT INTO sessions (`+sessionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Token, sess.UserID, sess.ExpiresAt, sess.IPAddress, sess.UserAgent, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByToken returns the session for token, or nil if it is missing or expired.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	sess, err := get[model.Session](ctx, s.db,
		`SELECT `+sessionCols+` FROM sessions WHERE token = ? AND expires_at > ?`,
		token, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if _, err := exec(ctx, s.db, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := exec(ctx, s.db, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns how many were deleted.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	n, err := exec(ctx, s.db, `DELETE FROM sessions WHERE expires_at <= ?`, now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}
