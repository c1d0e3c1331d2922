package auth_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/habedi/dogs/auth"
	"github.com/habedi/dogs/client"
	"github.com/stretchr/testify/require"
)

var epochStart = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock { return &fakeClock{now: epochStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) auth.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every timer that became due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that are armed and not yet fired.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeAuthenticator struct {
	clock *fakeClock
	t     *testing.T

	loginErr error
	// refreshErr makes every refresh fail.
	refreshErr error
	// release, when set, blocks each refresh until it is closed.
	release chan struct{}

	refreshCalls atomic.Int32
	mu           sync.Mutex
	usedTokens   []string
	issued       int
}

func newFakeAuthenticator(t *testing.T, clock *fakeClock) *fakeAuthenticator {
	return &fakeAuthenticator{t: t, clock: clock}
}

func (f *fakeAuthenticator) Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &client.LoginResponse{
		TokenPair: client.TokenPair{
			AccessToken:  makeToken(f.t, f.clock.Now().Add(time.Hour), "a1"),
			RefreshToken: "r1",
		},
		UserProfile: client.UserProfile{ID: 1, Username: req.Username, FirstName: "Emily"},
	}, nil
}

func (f *fakeAuthenticator) Refresh(ctx context.Context, req client.RefreshRequest) (*client.TokenPair, error) {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	f.usedTokens = append(f.usedTokens, req.RefreshToken)
	f.issued++
	n := f.issued
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &client.TokenPair{
		AccessToken:  makeToken(f.t, f.clock.Now().Add(time.Hour), "a"+strconv.Itoa(n+1)),
		RefreshToken: "r" + strconv.Itoa(n+1),
	}, nil
}

func (f *fakeAuthenticator) UsedRefreshTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.usedTokens...)
}

// makeToken returns a signed JWT whose jti is id, so tokens with the same exp differ.
func makeToken(t *testing.T, exp time.Time, id string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
		"jti": id,
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func jti(t *testing.T, token string) string {
	t.Helper()
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	id, _ := claims["jti"].(string)
	return id
}
