package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/db"
	"github.com/habedi/dogs/pkg/apierr"
	"github.com/habedi/dogs/pkg/ttlcache"
	"github.com/habedi/dogs/server"
	"github.com/stretchr/testify/require"
)

// fakeIdentity issues sequential tokens and remembers which user owns each.
type fakeIdentity struct {
	mu           sync.Mutex
	n            int
	access       map[string]int
	refresh      map[string]int
	users        map[int]client.UserProfile
	currentCalls int
	refreshCalls int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		access:  map[string]int{},
		refresh: map[string]int{},
		users: map[int]client.UserProfile{
			1: {ID: 1, Username: "emilys", FirstName: "Emily"},
			2: {ID: 2, Username: "michaelw", FirstName: "Michael"},
		},
	}
}

func (f *fakeIdentity) issueLocked(userID int) client.TokenPair {
	f.n++
	pair := client.TokenPair{
		AccessToken:  "access-" + strconv.Itoa(f.n),
		RefreshToken: "refresh-" + strconv.Itoa(f.n),
	}
	f.access[pair.AccessToken] = userID
	f.refresh[pair.RefreshToken] = userID
	return pair
}

// grant issues tokens for a user without going through Login.
func (f *fakeIdentity) grant(userID int) client.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(userID)
}

func (f *fakeIdentity) Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if u.Username == req.Username && req.Password == u.Username+"pass" {
			return &client.LoginResponse{TokenPair: f.issueLocked(id), UserProfile: u}, nil
		}
	}
	return nil, apierr.New(apierr.Unauthorized, "Invalid username or password", nil)
}

func (f *fakeIdentity) CurrentUser(ctx context.Context, accessToken string) (*client.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentCalls++
	id, ok := f.access[accessToken]
	if !ok {
		return nil, apierr.New(apierr.Unauthorized, "Invalid or expired token", nil)
	}
	u := f.users[id]
	return &u, nil
}

func (f *fakeIdentity) Refresh(ctx context.Context, req client.RefreshRequest) (*client.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	id, ok := f.refresh[req.RefreshToken]
	if !ok {
		return nil, apierr.New(apierr.Unauthorized, "Invalid or expired refresh token", nil)
	}
	delete(f.refresh, req.RefreshToken)
	pair := f.issueLocked(id)
	return &pair, nil
}

// revoke makes the upstream reject an access token from now on.
func (f *fakeIdentity) revoke(accessToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.access, accessToken)
}

func (f *fakeIdentity) calls() (current, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls, f.refreshCalls
}

type fakeCatalog struct {
	mu          sync.Mutex
	breeds      []string
	breedCalls  int
	imageCalls  int
	unavailable bool
}

func (f *fakeCatalog) Breeds(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breedCalls++
	if f.unavailable {
		return nil, apierr.New(apierr.ServiceUnavailable, "Dog catalogue unavailable", nil)
	}
	return f.breeds, nil
}

func (f *fakeCatalog) BreedImages(ctx context.Context, breed string, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if breed == "unicorn" {
		return nil, apierr.New(apierr.NotFound, "Breed not found", nil)
	}
	urls := make([]string, count)
	for i := range urls {
		urls[i] = "https://images.dog.ceo/breeds/" + breed + "/" + strconv.Itoa(i) + ".jpg"
	}
	return urls, nil
}

func (f *fakeCatalog) setUnavailable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable = v
}

func (f *fakeCatalog) calls() (breeds, images int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.breedCalls, f.imageCalls
}

// testClock is a settable time source shared by the cache, the store and the services.
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

type testEnv struct {
	srv       *httptest.Server
	identity  *fakeIdentity
	catalog   *fakeCatalog
	sessions  db.SessionRepository
	auth      *server.AuthService
	catalogue *server.CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, time.Now, nil)
}

// newClockedTestEnv runs every expiry in the stack off one controllable clock.
func newClockedTestEnv(t *testing.T) (*testEnv, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return buildTestEnv(t, clock.Now, nil), clock
}

// buildTestEnv wires the router over an in-memory store. wrapFavs, when set,
// decorates the favourites repository.
func buildTestEnv(t *testing.T, now func() time.Time, wrapFavs func(db.FavouriteRepository) db.FavouriteRepository) *testEnv {
	t.Helper()
	gdb, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		identity: newFakeIdentity(),
		catalog:  &fakeCatalog{breeds: []string{"beagle", "hound", "pug"}},
		sessions: db.NewSessionRepository(gdb, db.WithSessionClock(now)),
	}
	env.auth = server.NewAuthService(env.identity, env.sessions,
		ttlcache.New[client.UserProfile](true, ttlcache.WithClock[client.UserProfile](now)),
		time.Hour, 5*time.Minute, server.WithAuthClock(now))
	env.catalogue = server.NewCatalogService(env.catalog, true, 24*time.Hour, time.Minute)

	favs := db.NewFavouriteRepository(gdb)
	if wrapFavs != nil {
		favs = wrapFavs(favs)
	}
	env.srv = httptest.NewServer(server.NewRouter(server.Services{
		Auth:       env.auth,
		Catalog:    env.catalogue,
		Favourites: server.NewFavouritesService(favs),
	}))
	t.Cleanup(env.srv.Close)
	return env
}

// call sends a request and returns the status and raw body.
func (e *testEnv) call(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) login(t *testing.T, username string) client.LoginResponse {
	t.Helper()
	status, body := e.call(t, http.MethodPost, "/auth/login", "",
		client.LoginRequest{Username: username, Password: username + "pass"})
	require.Equal(t, http.StatusOK, status, string(body))
	var resp client.LoginResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func decodeError(t *testing.T, body []byte) server.APIError {
	t.Helper()
	var resp server.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Error
}
