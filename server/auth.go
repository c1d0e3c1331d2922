package server

import (
	"context"
	"net/http"
	"time"

	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/db"
	"github.com/habedi/dogs/pkg/apierr"
	"github.com/habedi/dogs/pkg/ttlcache"
	"github.com/rs/zerolog/log"
)

// IdentityProvider is the upstream identity API. client.IdentityClient satisfies it.
type IdentityProvider interface {
	Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error)
	CurrentUser(ctx context.Context, accessToken string) (*client.UserProfile, error)
	Refresh(ctx context.Context, req client.RefreshRequest) (*client.TokenPair, error)
}

// AuthService fronts the identity provider with the persisted session store. A
// short-lived in-memory cache maps access tokens to profiles ahead of the store.
// A cached profile never outlives the session it was read from, and a session
// deleted by another process is noticed within profileTTL.
type AuthService struct {
	identity   IdentityProvider
	sessions   db.SessionRepository
	profiles   *ttlcache.Cache[client.UserProfile]
	sessionTTL time.Duration
	profileTTL time.Duration
	now        func() time.Time
}

type AuthOption func(*AuthService)

// WithAuthClock overrides the time source used to bound cache entries. It should
// match the clock of the session repository.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(identity IdentityProvider, sessions db.SessionRepository, profiles *ttlcache.Cache[client.UserProfile], sessionTTL, profileTTL time.Duration, opts ...AuthOption) *AuthService {
	if profiles == nil {
		profiles = ttlcache.New[client.UserProfile](false)
	}
	if sessionTTL <= 0 {
		sessionTTL = db.DefaultSessionTTL
	}
	s := &AuthService{
		identity:   identity,
		sessions:   sessions,
		profiles:   profiles,
		sessionTTL: sessionTTL,
		profileTTL: profileTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func profileKey(accessToken string) string { return "profile:" + accessToken }

// cacheProfile caches p for the session's remaining lifetime, capped at profileTTL.
func (s *AuthService) cacheProfile(accessToken string, p client.UserProfile, remaining time.Duration) {
	if s.profileTTL > 0 && s.profileTTL < remaining {
		remaining = s.profileTTL
	}
	if remaining <= 0 {
		return
	}
	s.profiles.Set(profileKey(accessToken), p, remaining)
}

// Login authenticates upstream and replaces the user's stored session. A store
// failure is logged; the caller still gets its tokens.
func (s *AuthService) Login(ctx context.Context, req client.LoginRequest) (*client.LoginResponse, error) {
	resp, err := s.identity.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	ttl := s.sessionTTL
	if req.ExpiresInMins > 0 {
		ttl = time.Duration(req.ExpiresInMins) * time.Minute
	}

	if prev, err := s.sessions.FindSession(ctx, resp.ID); err == nil && prev != nil {
		s.profiles.Delete(profileKey(prev.AccessToken))
	}
	if err := s.sessions.SaveSession(ctx, resp.AccessToken, resp.RefreshToken, resp.UserProfile, ttl); err != nil {
		log.Warn().Err(err).Int("user_id", resp.ID).Msg("Login succeeded but the session was not stored")
	} else {
		s.cacheProfile(resp.AccessToken, resp.UserProfile, ttl)
	}

	log.Info().Int("user_id", resp.ID).Str("username", resp.Username).Msg("User logged in")
	return resp, nil
}

// CurrentUser resolves an access token, asking the identity provider only when
// neither the cache nor the store knows it.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*client.UserProfile, error) {
	if accessToken == "" {
		return nil, apierr.New(apierr.Unauthorized, "Missing access token", nil)
	}
	if p, ok := s.profiles.Get(profileKey(accessToken)); ok {
		return &p, nil
	}

	stored, err := s.sessions.FindSessionByAccessToken(ctx, accessToken)
	if err != nil {
		log.Warn().Err(err).Msg("Session lookup failed; asking identity provider")
	}
	if stored != nil {
		p, err := stored.Profile()
		if err == nil {
			s.cacheProfile(accessToken, *p, stored.ExpiresAt.Sub(s.now()))
			return p, nil
		}
		log.Warn().Err(err).Int("user_id", stored.UserID).Msg("Stored profile is unreadable; asking identity provider")
	}

	p, err := s.identity.CurrentUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	refresh := ""
	if prev, err := s.sessions.FindSession(ctx, p.ID); err == nil && prev != nil {
		refresh = prev.RefreshToken
		s.profiles.Delete(profileKey(prev.AccessToken))
	}
	if err := s.sessions.SaveSession(ctx, accessToken, refresh, *p, s.sessionTTL); err != nil {
		log.Warn().Err(err).Int("user_id", p.ID).Msg("Failed to store session from identity lookup")
	} else {
		s.cacheProfile(accessToken, *p, s.sessionTTL)
	}
	return p, nil
}

// Refresh rotates a token pair. The stored session only selects which row to
// rotate; a refresh token without a local session is still forwarded upstream,
// which stays authoritative, and the session is rebuilt from the new token. The
// owner lookup and the token update are two separate store calls.
func (s *AuthService) Refresh(ctx context.Context, req client.RefreshRequest) (*client.TokenPair, error) {
	if req.RefreshToken == "" {
		return nil, apierr.New(apierr.Validation, "refreshToken is required", nil)
	}

	owner, err := s.sessions.GetSessionByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("Refresh token lookup failed")
	}

	pair, err := s.identity.Refresh(ctx, req)
	if err != nil {
		return nil, err
	}

	ttl := s.sessionTTL
	if req.ExpiresInMins > 0 {
		ttl = time.Duration(req.ExpiresInMins) * time.Minute
	}

	if owner != nil {
		s.profiles.Delete(profileKey(owner.AccessToken))
		if err := s.sessions.UpdateSessionTokens(ctx, owner.UserID, pair.AccessToken, pair.RefreshToken, ttl); err != nil {
			log.Warn().Err(err).Int("user_id", owner.UserID).Msg("Failed to rotate stored tokens")
			return pair, nil
		}
		if p, err := owner.Profile(); err == nil {
			s.cacheProfile(pair.AccessToken, *p, ttl)
		}
		return pair, nil
	}

	// No local session: the upstream is authoritative, rebuild it from the new token.
	p, err := s.identity.CurrentUser(ctx, pair.AccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("Refreshed tokens could not be tied to a user")
		return pair, nil
	}
	if err := s.sessions.SaveSession(ctx, pair.AccessToken, pair.RefreshToken, *p, ttl); err != nil {
		log.Warn().Err(err).Int("user_id", p.ID).Msg("Failed to store refreshed session")
	} else {
		s.cacheProfile(pair.AccessToken, *p, ttl)
	}
	return pair, nil
}

// Logout ends the session an access token belongs to. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	s.profiles.Delete(profileKey(accessToken))
	p, err := s.sessions.GetSessionByAccessToken(ctx, accessToken)
	if err != nil {
		return apierr.New(apierr.Internal, "Failed to look up session", err)
	}
	if p == nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, p.ID); err != nil {
		return apierr.New(apierr.Internal, "Failed to delete session", err)
	}
	log.Info().Int("user_id", p.ID).Msg("User logged out")
	return nil
}

// HTTP handlers.

func (s *AuthService) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := s.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *AuthService) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UserFrom(r.Context()))
}

func (s *AuthService) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req client.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := s.Refresh(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *AuthService) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Logout(r.Context(), BearerFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sweep drops expired profile cache entries.
func (s *AuthService) Sweep() int { return s.profiles.Sweep() }
