package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/habedi/dogs/pkg/apierr"
	"github.com/rs/zerolog/log"
)

// IdentityClient talks to a dummyjson-shaped identity API. The proxy exposes the
// same /auth routes, so the CLI points this client at the proxy as well.
type IdentityClient struct {
	BaseURL string
	http    *http.Client
}

func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	return &IdentityClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(timeout),
	}
}

// Login exchanges credentials for a token pair and the user's profile.
func (c *IdentityClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, apierr.New(apierr.Validation, err.Error(), err)
	}

	var resp LoginResponse
	if err := do(ctx, c.http, http.MethodPost, c.BaseURL+"/auth/login", req, "", &resp); err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("Login request failed")
		switch statusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return nil, apierr.New(apierr.Unauthorized, "Invalid username or password", err)
		default:
			return nil, apierr.New(apierr.ServiceUnavailable, "Authentication service unavailable", err)
		}
	}
	if err := resp.Validate(); err != nil {
		return nil, apierr.New(apierr.ServiceUnavailable, "Authentication service returned an invalid login response", err)
	}

	log.Info().Int("user_id", resp.ID).Str("access_token", TokenPrefix(resp.AccessToken)).Msg("Logged in")
	return &resp, nil
}

// CurrentUser resolves the profile that owns accessToken.
func (c *IdentityClient) CurrentUser(ctx context.Context, accessToken string) (*UserProfile, error) {
	var user UserProfile
	if err := do(ctx, c.http, http.MethodGet, c.BaseURL+"/auth/me", nil, accessToken, &user); err != nil {
		log.Error().Err(err).Msg("Get current user request failed")
		switch statusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, apierr.New(apierr.Unauthorized, "Invalid or expired token", err)
		default:
			return nil, apierr.New(apierr.ServiceUnavailable, "Failed to fetch user information", err)
		}
	}
	if err := user.Validate(); err != nil {
		return nil, apierr.New(apierr.ServiceUnavailable, "Identity service returned an invalid profile", err)
	}
	return &user, nil
}

// Refresh trades a refresh token for a new token pair.
func (c *IdentityClient) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	if req.RefreshToken == "" {
		return nil, apierr.New(apierr.Unauthorized, "Invalid or expired refresh token", fmt.Errorf("refresh token is empty"))
	}

	var pair TokenPair
	if err := do(ctx, c.http, http.MethodPost, c.BaseURL+"/auth/refresh", req, "", &pair); err != nil {
		log.Error().Err(err).Msg("Refresh token request failed")
		switch statusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, apierr.New(apierr.Unauthorized, "Invalid or expired refresh token", err)
		default:
			return nil, apierr.New(apierr.ServiceUnavailable, "Failed to refresh authentication token", err)
		}
	}
	if err := pair.Validate(); err != nil {
		return nil, apierr.New(apierr.ServiceUnavailable, "Identity service returned an invalid token pair", err)
	}

	log.Debug().Str("access_token", TokenPrefix(pair.AccessToken)).Msg("Refreshed token pair")
	return &pair, nil
}

// Logout asks the proxy to drop the server-side session for accessToken.
func (c *IdentityClient) Logout(ctx context.Context, accessToken string) error {
	if err := do(ctx, c.http, http.MethodPost, c.BaseURL+"/auth/logout", nil, accessToken, nil); err != nil {
		switch statusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apierr.New(apierr.Unauthorized, "Invalid or expired token", err)
		default:
			return apierr.New(apierr.ServiceUnavailable, "Failed to log out", err)
		}
	}
	return nil
}
