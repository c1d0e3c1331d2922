package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/pkg/apierr"
	"github.com/habedi/dogs/pkg/jwtclaims"
	"github.com/rs/zerolog/log"
)

// ErrNoRefreshToken is recorded when a refresh is needed but no refresh token is stored.
var ErrNoRefreshToken = apierr.New(apierr.Unauthorized, "No refresh token available; please login first", nil)

// Orchestrator keeps a short-lived access token fresh for any number of
// concurrent callers. At most one refresh call is outstanding at a time, and a
// timer renews the token shortly before its exp claim.
type Orchestrator struct {
	api    Authenticator
	store  tokenStore
	clock  Clock
	leeway time.Duration

	mu       sync.Mutex
	user     *client.UserProfile
	lastErr  error
	inflight *flight
	timer    Timer
	timerSeq uint64
	// epoch changes on every Login and Logout. Work started under an older
	// epoch must not touch the session.
	epoch  uint64
	closed bool
}

// flight is one outstanding refresh. token is valid once done is closed.
type flight struct {
	done  chan struct{}
	token string
}

type Option func(*Orchestrator)

// WithLeeway sets how long before exp a token is treated as expired.
func WithLeeway(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.leeway = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func NewOrchestrator(api Authenticator, storage Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		store:  tokenStore{s: storage},
		clock:  systemClock{},
		leeway: jwtclaims.DefaultLeeway,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Login authenticates and, on success, replaces the whole session. A failed
// login leaves the current session untouched.
func (o *Orchestrator) Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	resp, err := o.api.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, apierr.New(apierr.ServiceUnavailable, "Received an invalid login response", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.epoch++
	o.inflight = nil
	o.store.setTokens(resp.TokenPair)
	o.store.setUser(resp.UserProfile)
	user := resp.UserProfile
	o.user = &user
	o.lastErr = nil
	o.scheduleLocked(resp.AccessToken)

	log.Info().Int("user_id", user.ID).Str("username", user.Username).Msg("Session started")
	return resp, nil
}

// GetAccessToken returns a token that is valid for at least the leeway, refreshing
// if needed. It returns "" when there is no session or the refresh failed.
func (o *Orchestrator) GetAccessToken(ctx context.Context) string {
	o.mu.Lock()
	token := o.store.accessToken()
	if token == "" {
		o.mu.Unlock()
		return ""
	}
	if !jwtclaims.IsExpired(token, o.leeway, o.clock.Now()) {
		o.mu.Unlock()
		return token
	}
	f := o.joinOrStartLocked(ctx)
	o.mu.Unlock()

	return o.wait(ctx, f)
}

// DoRefresh obtains a new token pair, joining the outstanding refresh if there
// is one. It returns the new access token, or "" on failure, in which case the
// session has been cleared and Err reports the cause.
func (o *Orchestrator) DoRefresh(ctx context.Context) string {
	o.mu.Lock()
	f := o.joinOrStartLocked(ctx)
	o.mu.Unlock()

	return o.wait(ctx, f)
}

// joinOrStartLocked returns the outstanding flight, starting one if needed.
// It returns nil when no refresh can be attempted.
func (o *Orchestrator) joinOrStartLocked(ctx context.Context) *flight {
	if o.inflight != nil {
		return o.inflight
	}

	refresh := o.store.refreshToken()
	if refresh == "" {
		log.Warn().Msg("Refresh requested without a refresh token; ending session")
		o.logoutLocked()
		o.lastErr = ErrNoRefreshToken
		return nil
	}

	f := &flight{done: make(chan struct{})}
	o.inflight = f
	// The call outlives the initiating caller so joiners still get a result.
	go o.runFlight(context.WithoutCancel(ctx), f, o.epoch, refresh)
	return f
}

func (o *Orchestrator) wait(ctx context.Context, f *flight) string {
	if f == nil {
		return ""
	}
	select {
	case <-f.done:
		return f.token
	case <-ctx.Done():
		return ""
	}
}

func (o *Orchestrator) runFlight(ctx context.Context, f *flight, epoch uint64, refresh string) {
	defer close(f.done)

	log.Debug().Msg("Refreshing access token")
	pair, err := o.api.Refresh(ctx, client.RefreshRequest{RefreshToken: refresh})
	if err == nil {
		if verr := pair.Validate(); verr != nil {
			err = apierr.New(apierr.ServiceUnavailable, "Received an invalid token pair", verr)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inflight == f {
		o.inflight = nil
	}
	if epoch != o.epoch {
		log.Debug().Msg("Discarding refresh result from an ended session")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Token refresh failed; ending session")
		o.logoutLocked()
		o.lastErr = fmt.Errorf("token refresh failed: %w", err)
		return
	}

	o.store.setTokens(*pair)
	if o.user == nil {
		o.user = o.store.user()
	}
	o.lastErr = nil
	o.scheduleLocked(pair.AccessToken)
	f.token = pair.AccessToken
	log.Info().Str("access_token", client.TokenPrefix(pair.AccessToken)).Msg("Access token refreshed")
}

// Logout clears the session and cancels any pending renewal. It is idempotent.
func (o *Orchestrator) Logout() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logoutLocked()
}

func (o *Orchestrator) logoutLocked() {
	o.epoch++
	o.inflight = nil
	o.cancelTimerLocked()
	o.store.clear()
	o.user = nil
	o.lastErr = nil
}

// Restore rebuilds the session from storage at startup. A stored token that is
// still valid restores the user and arms renewal; otherwise a stored refresh
// token is used to obtain a new pair.
func (o *Orchestrator) Restore(ctx context.Context) {
	o.mu.Lock()
	access := o.store.accessToken()
	if access != "" && !jwtclaims.IsExpired(access, o.leeway, o.clock.Now()) {
		if user := o.store.user(); user != nil {
			o.user = user
			o.scheduleLocked(access)
			o.mu.Unlock()
			log.Debug().Int("user_id", user.ID).Msg("Session restored from storage")
			return
		}
	}
	if o.store.refreshToken() == "" {
		o.mu.Unlock()
		return
	}
	f := o.joinOrStartLocked(ctx)
	o.mu.Unlock()

	o.wait(ctx, f)
}

// scheduleLocked arms a renewal at exp - leeway, replacing any previous timer.
// A token without a readable exp arms nothing.
func (o *Orchestrator) scheduleLocked(token string) {
	o.cancelTimerLocked()
	if o.closed {
		return
	}
	delay, ok := jwtclaims.RenewalDelay(token, o.leeway, o.clock.Now())
	if !ok {
		log.Debug().Msg("Access token has no readable exp; renewal not scheduled")
		return
	}
	seq := o.timerSeq
	o.timer = o.clock.AfterFunc(delay, func() { o.renew(seq) })
	log.Debug().Dur("delay", delay).Msg("Token renewal scheduled")
}

func (o *Orchestrator) cancelTimerLocked() {
	o.timerSeq++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) renew(seq uint64) {
	o.mu.Lock()
	if seq != o.timerSeq || o.closed {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.mu.Unlock()

	if o.DoRefresh(context.Background()) == "" {
		log.Warn().Err(o.Err()).Msg("Scheduled token renewal failed")
	}
}

// Close cancels pending renewal. The stored session is kept.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cancelTimerLocked()
}

// User returns a copy of the current profile, or nil when logged out.
func (o *Orchestrator) User() *client.UserProfile {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.user == nil {
		return nil
	}
	u := *o.user
	return &u
}

// Err returns the cause of the last failed refresh.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) IsRefreshing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight != nil
}

func (o *Orchestrator) IsAuthenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user != nil && o.store.accessToken() != ""
}
