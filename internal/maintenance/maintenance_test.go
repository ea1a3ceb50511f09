package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/homewise/internal/database"
	"github.com/dukerupert/homewise/internal/logging"
	"github.com/dukerupert/homewise/internal/middleware"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutbox struct {
	cutoff time.Time
	err    error
}

func (f *fakeOutbox) PruneSent(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

type fakeSessions struct{ calls int }

func (f *fakeSessions) DeleteExpired(context.Context) (int64, error) {
	f.calls++
	return 0, nil
}

func TestRunAllPrunesOutboxWithRetention(t *testing.T) {
	ob := &fakeOutbox{}
	s := New(nil, ob, nil, Config{OutboxRetains: 48 * time.Hour}, logging.Discard())
	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.RunAll(context.Background())

	assert.Equal(t, fixed.Add(-48*time.Hour), ob.cutoff)
}

func TestRunAllContinuesAfterFailure(t *testing.T) {
	sess := &fakeSessions{}
	ob := &fakeOutbox{err: errors.New("db closed")}
	s := New(sess, ob, nil, Config{}, logging.Discard())

	s.RunAll(context.Background())
	s.RunAll(context.Background())

	assert.Equal(t, 2, sess.calls)
}

func TestRunAllCleansRateLimiter(t *testing.T) {
	limiter := middleware.NewRateLimiter(10, time.Minute, 10)
	limiter.Allow("192.0.2.1")
	require.Equal(t, 1, limiter.Len())

	s := New(nil, nil, limiter, Config{LimiterIdle: time.Nanosecond}, logging.Discard())
	time.Sleep(time.Millisecond)
	s.RunAll(context.Background())

	assert.Zero(t, limiter.Len())
}

func TestRunAllDeletesExpiredSessions(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	user, err := store.NewUserStore(db).Create(ctx, "a@test.com", "Alice", "hash")
	require.NoError(t, err)

	sessions := store.NewSessionStore(db)
	expired, err := sessions.Create(ctx, user.ID, -time.Minute, "", "")
	require.NoError(t, err)
	live, err := sessions.Create(ctx, user.ID, time.Hour, "", "")
	require.NoError(t, err)

	New(sessions, nil, nil, Config{}, logging.Discard()).RunAll(ctx)

	got, err := sessions.GetByToken(ctx, expired.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = sessions.GetByToken(ctx, live.Token)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&fakeSessions{}, nil, nil, Config{SessionsSpec: "every tuesday"}, logging.Discard())
	assert.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	s := New(&fakeSessions{}, &fakeOutbox{}, middleware.NewRateLimiter(1, time.Second, 1), Config{}, logging.Discard())
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	New(nil, nil, nil, Config{}, logging.Discard()).Stop()
}
