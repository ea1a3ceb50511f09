package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/homewise/internal/apperr"
	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/logging"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProvider(t *testing.T, requireVerification bool) (*Provider, *sqlx.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := NewProvider(db, NewTokens("test-secret-0123456789", 24*time.Hour), Config{
		SessionTTL:               time.Hour,
		RequireEmailVerification: requireVerification,
		BaseURL:                  "https://api.test",
	}, logging.Discard())
	return p, db
}

var client = ClientInfo{IPAddress: "127.0.0.1", UserAgent: "go-test"}

func TestSignUpQueuesVerificationEmail(t *testing.T) {
	p, db := setupProvider(t, true)
	kicked := 0
	p.OnEnqueue(func() { kicked++ })

	user, sess, err := p.SignUp(context.Background(), SignUpInput{
		Name: "  Jane Doe ", Email: "Jane@Test.com", Password: "password1",
	}, client)
	require.NoError(t, err)
	assert.Nil(t, sess, "no session until the address is verified")
	assert.Equal(t, "Jane Doe", user.Name)
	assert.Equal(t, "jane@test.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, "password1", user.PasswordHash)
	assert.Equal(t, 1, kicked)

	msgs, err := store.NewOutboxStore(db).ListByRecipient(context.Background(), "jane@test.com")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.KindVerifyEmail, msgs[0].Kind)
	assert.Equal(t, model.OutboxPending, msgs[0].Status)
	assert.Contains(t, msgs[0].TextBody, "https://api.test/auth/verify-email?token=")
}

func TestSignUpWithoutVerificationSignsIn(t *testing.T) {
	p, _ := setupProvider(t, false)

	user, sess, err := p.SignUp(context.Background(), SignUpInput{
		Name: "Jane", Email: "jane@test.com", Password: "password1",
	}, client)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, user.ID, sess.UserID)
	assert.Len(t, sess.Token, 64)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	p, _ := setupProvider(t, true)
	in := SignUpInput{Name: "Jane", Email: "jane@test.com", Password: "password1"}

	_, _, err := p.SignUp(context.Background(), in, client)
	require.NoError(t, err)

	in.Email = "JANE@test.com"
	_, _, err = p.SignUp(context.Background(), in, client)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
}

func TestSignUpValidation(t *testing.T) {
	p, _ := setupProvider(t, true)

	_, _, err := p.SignUp(context.Background(), SignUpInput{
		Name: "Jane", Email: "jane@test.com", Password: "short",
	}, client)
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
	assert.Equal(t, []string{"password"}, apperr.As(err).Issues[0].Path)

	_, _, err = p.SignUp(context.Background(), SignUpInput{
		Name: "Jane", Email: "not-an-email", Password: "password1",
	}, client)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSignInRequiresVerifiedEmail(t *testing.T) {
	p, _ := setupProvider(t, true)
	ctx := context.Background()

	user, _, err := p.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@test.com", Password: "password1"}, client)
	require.NoError(t, err)

	_, err = p.SignIn(ctx, SignInInput{Email: "jane@test.com", Password: "password1"}, client)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied), "got %v", err)

	token, err := p.tokens.Issue(PurposeVerifyEmail, user.ID)
	require.NoError(t, err)
	sess, err := p.VerifyEmail(ctx, token, client)
	require.NoError(t, err)
	assert.True(t, sess.User.EmailVerified)

	sess, err = p.SignIn(ctx, SignInInput{Email: "jane@test.com", Password: "password1"}, client)
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.UserID)
}

func TestSignInWrongPassword(t *testing.T) {
	p, _ := setupProvider(t, false)
	ctx := context.Background()

	_, _, err := p.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@test.com", Password: "password1"}, client)
	require.NoError(t, err)

	_, err = p.SignIn(ctx, SignInInput{Email: "jane@test.com", Password: "password2"}, client)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = p.SignIn(ctx, SignInInput{Email: "nobody@test.com", Password: "password1"}, client)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestAuthenticateAndSignOut(t *testing.T) {
	p, _ := setupProvider(t, false)
	ctx := context.Background()

	_, sess, err := p.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@test.com", Password: "password1"}, client)
	require.NoError(t, err)

	got, err := p.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	require.NotNil(t, got.User)
	assert.Equal(t, "jane@test.com", got.User.Email)

	require.NoError(t, p.SignOut(ctx, sess.Token))
	_, err = p.Authenticate(ctx, sess.Token)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = p.Authenticate(ctx, "")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestVerifyEmailRejectsOneTimeToken(t *testing.T) {
	p, _ := setupProvider(t, true)
	ctx := context.Background()

	user, _, err := p.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@test.com", Password: "password1"}, client)
	require.NoError(t, err)

	token, err := p.GenerateOneTimeToken(ctx, Session{UserID: user.ID})
	require.NoError(t, err)

	_, err = p.VerifyEmail(ctx, token, client)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestOneTimeTokenRoundTrip(t *testing.T) {
	p, _ := setupProvider(t, true)
	ctx := context.Background()

	token, err := p.GenerateOneTimeToken(ctx, Session{UserID: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	userID, err := p.VerifyOneTimeToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", userID)

	_, err = p.VerifyOneTimeToken(ctx, token+"x")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, 24*time.Hour, p.OneTimeTokenTTL())
}

func TestUpdateUser(t *testing.T) {
	p, _ := setupProvider(t, true)
	ctx := context.Background()

	user, _, err := p.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@test.com", Password: "password1"}, client)
	require.NoError(t, err)

	updated, err := p.UpdateUser(ctx, user.ID, "Janet", "https://cdn.test/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Janet", updated.Name)
	assert.Equal(t, "https://cdn.test/a.jpg", updated.Image)

	_, err = p.UpdateUser(ctx, "missing", "x", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = p.GetUser(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
