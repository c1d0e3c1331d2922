package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newSessionRepo(t *testing.T) (db.SessionRepository, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return db.NewSessionRepository(openTestDB(t), db.WithSessionClock(clock.Now)), clock
}

var emily = client.UserProfile{ID: 1, Username: "emilys", Email: "emily.johnson@x.dummyjson.com", FirstName: "Emily"}

func TestSaveSession_ReplacesPreviousSessionForUser(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Hour))
	renamed := emily
	renamed.FirstName = "Em"
	require.NoError(t, repo.SaveSession(ctx, "a2", "r2", renamed, time.Hour))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "a2", sessions[0].AccessToken)

	p, err := repo.GetSession(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Em", p.FirstName)

	old, err := repo.GetSessionByAccessToken(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, old)
	stale, err := repo.GetSessionByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, stale)
}

func TestSaveSession_DefaultTTL(t *testing.T) {
	repo, clock := newSessionRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, 0))

	clock.Advance(db.DefaultSessionTTL - time.Second)
	p, err := repo.GetSession(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, p)

	clock.Advance(time.Second)
	p, err = repo.GetSession(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, p, "a session is absent once now reaches expires_at")
}

func TestSaveSession_RejectsInvalidProfile(t *testing.T) {
	repo, _ := newSessionRepo(t)

	err := repo.SaveSession(context.Background(), "a1", "r1", client.UserProfile{Username: "nobody"}, time.Hour)
	assert.Error(t, err)
	err = repo.SaveSession(context.Background(), "", "r1", emily, time.Hour)
	assert.Error(t, err)
}

func TestGetSession_MissingIsNil(t *testing.T) {
	repo, _ := newSessionRepo(t)

	p, err := repo.GetSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, p)

	s, err := repo.FindSession(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestFindSession_ReturnsTokens(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Hour))

	s, err := repo.FindSession(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "a1", s.AccessToken)
	assert.Equal(t, "r1", s.RefreshToken)
	assert.Equal(t, time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC), s.ExpiresAt.UTC())
}

func TestSaveSession_ReusesTokenHeldByExpiredRow(t *testing.T) {
	repo, clock := newSessionRepo(t)
	ctx := context.Background()
	michael := client.UserProfile{ID: 2, Username: "michaelw"}

	require.NoError(t, repo.SaveSession(ctx, "shared", "r1", emily, time.Minute))
	clock.Advance(2 * time.Minute)

	require.NoError(t, repo.SaveSession(ctx, "shared", "r2", michael, time.Hour),
		"an expired, unswept row must not block a new session with the same token")

	s, err := repo.FindSessionByAccessToken(ctx, "shared")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, s.UserID)
	assert.Equal(t, time.Date(2025, 3, 1, 13, 2, 0, 0, time.UTC), s.ExpiresAt.UTC())
}

func TestReadsDoNotExtendTTL(t *testing.T) {
	repo, clock := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Minute))

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Second)
		p, err := repo.GetSessionByAccessToken(ctx, "a1")
		require.NoError(t, err)
		require.NotNil(t, p)
	}
	clock.Advance(10 * time.Second)

	p, err := repo.GetSessionByAccessToken(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo, clock := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Hour))

	s, err := repo.GetSessionByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, s.UserID)

	clock.Advance(50 * time.Minute)
	require.NoError(t, repo.UpdateSessionTokens(ctx, s.UserID, "a2", "r2", time.Hour))

	byOld, err := repo.GetSessionByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, byOld)

	byNew, err := repo.GetSessionByRefreshToken(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, byNew)
	profile, err := byNew.Profile()
	require.NoError(t, err)
	assert.Equal(t, emily, *profile, "rotation keeps the profile")

	clock.Advance(30 * time.Minute)
	p, err := repo.GetSessionByAccessToken(ctx, "a2")
	require.NoError(t, err)
	assert.NotNil(t, p, "rotation restarts the TTL")
}

func TestUpdateSessionTokens_MissingUserIsNoop(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpdateSessionTokens(ctx, 99, "a", "r", time.Hour))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestGetSessionByRefreshToken_EmptyNeverMatches(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "", emily, time.Hour))

	s, err := repo.GetSessionByRefreshToken(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestDeleteSession(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Hour))

	require.NoError(t, repo.DeleteSession(ctx, 1))
	require.NoError(t, repo.DeleteSession(ctx, 1), "deleting a missing session is silent")

	p, err := repo.GetSession(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestDeleteAllSessions(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Hour))
	require.NoError(t, repo.SaveSession(ctx, "b1", "s1", client.UserProfile{ID: 2, Username: "michaelw"}, time.Hour))

	require.NoError(t, repo.DeleteAllSessions(ctx))
	require.NoError(t, repo.DeleteAllSessions(ctx))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCleanupExpiredTokens_CountsRemovedRows(t *testing.T) {
	repo, clock := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Minute))
	require.NoError(t, repo.SaveSession(ctx, "b1", "s1", client.UserProfile{ID: 2, Username: "michaelw"}, time.Minute))
	require.NoError(t, repo.SaveSession(ctx, "c1", "t1", client.UserProfile{ID: 3, Username: "sophiab"}, time.Hour))

	removed, err := repo.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	clock.Advance(time.Minute)
	removed, err = repo.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 3, sessions[0].UserID)
}

func TestListSessions_OrderedBySoonestExpiry(t *testing.T) {
	repo, _ := newSessionRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SaveSession(ctx, "a1", "r1", emily, time.Hour))
	require.NoError(t, repo.SaveSession(ctx, "b1", "s1", client.UserProfile{ID: 2, Username: "michaelw"}, time.Minute))

	sessions, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 2, sessions[0].UserID)
	assert.Equal(t, 1, sessions[1].UserID)
}

func TestRepository_NotInitialized(t *testing.T) {
	repo := db.NewSessionRepository(nil)

	_, err := repo.GetSession(context.Background(), 1)
	assert.Error(t, err)
	_, err = repo.CleanupExpiredTokens(context.Background())
	assert.Error(t, err)
}
