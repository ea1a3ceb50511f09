package auth

import (
	"context"
	"time"

	"github.com/dukerupert/homewise/internal/model"
)

type contextKey struct{}

// Session is an authenticated caller: the session row plus its user.
// Domain services take it as an explicit argument.
type Session struct {
	ID        string      `json:"id"`
	Token     string      `json:"-"`
	UserID    string      `json:"user_id"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(Session)
	return sess, ok
}

func UserID(ctx context.Context) string {
	sess, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return sess.UserID
}
