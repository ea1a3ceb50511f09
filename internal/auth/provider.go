// Package auth owns users, sessions and the short-lived tokens used for
// e-mail verification and household invites.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/email"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/outbox"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/dukerupert/homewise/internal/validate"
	"github.com/jmoiron/sqlx"
)

type Config struct {
	SessionTTL               time.Duration
	RequireEmailVerification bool
	// BaseURL prefixes the verification link, e.g. https://api.home-wise.app.
	BaseURL string
}

// ClientInfo describes where a sign-in came from. It is stored on the session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type SignUpInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Provider struct {
	db       *sqlx.DB
	users    *store.UserStore
	sessions *store.SessionStore
	tokens   *Tokens
	cfg      Config
	notify   func()
	logger   *slog.Logger
}

func NewProvider(db *sqlx.DB, tokens *Tokens, cfg Config, logger *slog.Logger) *Provider {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	return &Provider{
		db:       db,
		users:    store.NewUserStore(db),
		sessions: store.NewSessionStore(db),
		tokens:   tokens,
		cfg:      cfg,
		notify:   func() {},
		logger:   logger,
	}
}

// OnEnqueue registers fn to run after a commit that queued e-mail.
func (p *Provider) OnEnqueue(fn func()) {
	if fn != nil {
		p.notify = fn
	}
}

func (p *Provider) SessionTTL() time.Duration {
	return p.cfg.SessionTTL
}

// SignUp creates the user and queues the verification e-mail in one
// transaction. A session is returned only when verification is not required.
func (p *Provider) SignUp(ctx context.Context, in SignUpInput, client ClientInfo) (*model.User, *Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = store.NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, nil, err
	}

	existing, err := p.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, nil, apperr.Internal("sign up", err)
	}
	if existing != nil {
		return nil, nil, apperr.Conflict("user already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, nil, apperr.Internal("sign up", err)
	}

	var user *model.User
	err = database.WithTx(ctx, p.db, func(tx *sqlx.Tx) error {
		var err error
		user, err = p.users.WithTx(tx).Create(ctx, in.Email, in.Name, hash)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("insert user: no row returned")
		}
		return p.enqueueVerification(ctx, tx, user)
	})
	if database.IsUniqueViolation(err) {
		return nil, nil, apperr.Conflict("user already exists")
	}
	if err != nil {
		return nil, nil, apperr.Internal("sign up", err)
	}
	p.notify()
	p.logger.Info("user signed up", "user_id", user.ID)

	if p.cfg.RequireEmailVerification {
		return user, nil, nil
	}
	sess, err := p.openSession(ctx, user, client)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

func (p *Provider) enqueueVerification(ctx context.Context, tx *sqlx.Tx, user *model.User) error {
	token, err := p.tokens.Issue(PurposeVerifyEmail, user.ID)
	if err != nil {
		return err
	}
	link := p.cfg.BaseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
	msg, err := email.VerifyEmail(user.Email, email.VerifyEmailData{UserName: user.Name, URL: link})
	if err != nil {
		return err
	}
	_, err = outbox.Enqueue(ctx, tx, model.KindVerifyEmail, msg)
	return err
}

func (p *Provider) SignIn(ctx context.Context, in SignInInput, client ClientInfo) (*Session, error) {
	in.Email = store.NormalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	user, err := p.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, apperr.Internal("sign in", err)
	}
	if user == nil {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	ok, err := CheckPassword(user.PasswordHash, in.Password)
	if err != nil {
		return nil, apperr.Internal("sign in", err)
	}
	if !ok {
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if p.cfg.RequireEmailVerification && !user.EmailVerified {
		return nil, apperr.PermissionDenied("email not verified")
	}

	return p.openSession(ctx, user, client)
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	if err := p.sessions.Delete(ctx, token); err != nil {
		return apperr.Internal("sign out", err)
	}
	return nil
}

// Authenticate resolves a session token to the caller.
func (p *Provider) Authenticate(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, apperr.Unauthorized("authentication required")
	}
	row, err := p.sessions.GetByToken(ctx, token)
	if err != nil {
		return Session{}, apperr.Internal("authenticate", err)
	}
	if row == nil {
		return Session{}, apperr.Unauthorized("session expired or invalid")
	}
	user, err := p.users.GetByID(ctx, row.UserID)
	if err != nil {
		return Session{}, apperr.Internal("authenticate", err)
	}
	if user == nil {
		return Session{}, apperr.Unauthorized("session expired or invalid")
	}
	return Session{ID: row.ID, Token: row.Token, UserID: row.UserID, ExpiresAt: row.ExpiresAt, User: user}, nil
}

// VerifyEmail marks the token's user verified and signs them in.
func (p *Provider) VerifyEmail(ctx context.Context, token string, client ClientInfo) (*Session, error) {
	userID, err := p.tokens.Verify(PurposeVerifyEmail, token)
	if err != nil {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("verify email", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	if !user.EmailVerified {
		if err := p.users.MarkEmailVerified(ctx, user.ID); err != nil {
			return nil, apperr.Internal("verify email", err)
		}
		user.EmailVerified = true
	}
	return p.openSession(ctx, user, client)
}

// GenerateOneTimeToken issues a one-time token on behalf of the caller.
func (p *Provider) GenerateOneTimeToken(_ context.Context, sess Session) (string, error) {
	token, err := p.tokens.Issue(PurposeOneTime, sess.UserID)
	if err != nil {
		return "", apperr.Internal("generate one-time token", err)
	}
	return token, nil
}

// VerifyOneTimeToken returns the id of the user that issued token.
func (p *Provider) VerifyOneTimeToken(_ context.Context, token string) (string, error) {
	userID, err := p.tokens.Verify(PurposeOneTime, token)
	if err != nil {
		return "", apperr.Unauthorized("invalid or expired token")
	}
	return userID, nil
}

// OneTimeTokenTTL is how long invite links stay valid.
func (p *Provider) OneTimeTokenTTL() time.Duration {
	return p.tokens.TTL()
}

func (p *Provider) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := p.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal("get user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

// UpdateUser replaces the user's display name and avatar URL.
func (p *Provider) UpdateUser(ctx context.Context, id, name, image string) (*model.User, error) {
	user, err := p.users.UpdateProfile(ctx, id, name, image)
	if err != nil {
		return nil, apperr.Internal("update user", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

func (p *Provider) openSession(ctx context.Context, user *model.User, client ClientInfo) (*Session, error) {
	row, err := p.sessions.Create(ctx, user.ID, p.cfg.SessionTTL, client.IPAddress, client.UserAgent)
	if err != nil {
		return nil, apperr.Internal("create session", err)
	}
	return &Session{ID: row.ID, Token: row.Token, UserID: user.ID, ExpiresAt: row.ExpiresAt, User: user}, nil
}
