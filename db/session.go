package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/habedi/dogs/client"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSessionTTL is one minute shorter than the identity provider's default
// token lifetime, so a cached session never outlives its token.
const DefaultSessionTTL = 59 * time.Minute

// Session is one persisted login, keyed by user. A row whose ExpiresAt is not in
// the future is treated as absent.
type Session struct {
	UserID       int       `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	AccessToken  string    `gorm:"column:access_token;index;not null"`
	RefreshToken string    `gorm:"column:refresh_token;index"`
	UserData     string    `gorm:"column:user_data;not null"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (Session) TableName() string { return "auth_sessions" }

// Profile decodes the stored user data.
func (s *Session) Profile() (*client.UserProfile, error) {
	var p client.UserProfile
	if err := json.Unmarshal([]byte(s.UserData), &p); err != nil {
		return nil, fmt.Errorf("failed to decode session profile for user %d: %w", s.UserID, err)
	}
	return &p, nil
}

// SessionRepository persists sessions with per-row expiry. Reads never extend
// a session's lifetime. Lookups of missing or expired sessions return nil, nil.
type SessionRepository interface {
	SaveSession(ctx context.Context, accessToken, refreshToken string, profile client.UserProfile, ttl time.Duration) error
	GetSession(ctx context.Context, userID int) (*client.UserProfile, error)
	FindSession(ctx context.Context, userID int) (*Session, error)
	GetSessionByAccessToken(ctx context.Context, accessToken string) (*client.UserProfile, error)
	FindSessionByAccessToken(ctx context.Context, accessToken string) (*Session, error)
	GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)
	UpdateSessionTokens(ctx context.Context, userID int, accessToken, refreshToken string, ttl time.Duration) error
	DeleteSession(ctx context.Context, userID int) error
	DeleteAllSessions(ctx context.Context) error
	CleanupExpiredTokens(ctx context.Context) (int64, error)
	ListSessions(ctx context.Context) ([]Session, error)
}

type gormSessionRepo struct {
	db  *gorm.DB
	now func() time.Time
}

type SessionOption func(*gormSessionRepo)

// WithSessionClock overrides the time source used for expiry.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(r *gormSessionRepo) { r.now = now }
}

// NewSessionRepository creates a SessionRepository. Accepts *gorm.DB to avoid global access.
func NewSessionRepository(db *gorm.DB, opts ...SessionOption) SessionRepository {
	r := &gormSessionRepo{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// nowUTC keeps stored and compared timestamps in one zone so SQLite compares them correctly.
func (r *gormSessionRepo) nowUTC() time.Time { return r.now().UTC() }

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultSessionTTL
	}
	return ttl
}

// SaveSession stores or replaces the user's session.
func (r *gormSessionRepo) SaveSession(ctx context.Context, accessToken, refreshToken string, profile client.UserProfile, ttl time.Duration) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("refusing to store session: %w", err)
	}
	if accessToken == "" {
		return fmt.Errorf("refusing to store session: access token is empty")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	now := r.nowUTC()
	s := Session{
		UserID:       profile.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserData:     string(data),
		ExpiresAt:    now.Add(effectiveTTL(ttl)),
		CreatedAt:    now,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "user_data", "expires_at", "created_at"}),
	}).Create(&s).Error
	if err != nil {
		log.Error().Err(err).Int("user_id", profile.ID).Msg("Failed to save session")
		return err
	}
	log.Debug().Int("user_id", profile.ID).Time("expires_at", s.ExpiresAt).Msg("Session saved")
	return nil
}

func (r *gormSessionRepo) first(ctx context.Context, query string, arg any) (*Session, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var s Session
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Where("expires_at > ?", r.nowUTC()).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormSessionRepo) GetSession(ctx context.Context, userID int) (*client.UserProfile, error) {
	s, err := r.first(ctx, "user_id = ?", userID)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Profile()
}

// FindSession returns the user's full session row, tokens included.
func (r *gormSessionRepo) FindSession(ctx context.Context, userID int) (*Session, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *gormSessionRepo) GetSessionByAccessToken(ctx context.Context, accessToken string) (*client.UserProfile, error) {
	s, err := r.FindSessionByAccessToken(ctx, accessToken)
	if err != nil || s == nil {
		return nil, err
	}
	return s.Profile()
}

// FindSessionByAccessToken returns the active row holding accessToken, so callers
// can see when it expires. Expired rows that still hold the token are ignored.
func (r *gormSessionRepo) FindSessionByAccessToken(ctx context.Context, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, nil
	}
	return r.first(ctx, "access_token = ?", accessToken)
}

// GetSessionByRefreshToken finds the session a refresh token belongs to. An empty
// token never matches, even though sessions created from a bare access token
// store one.
func (r *gormSessionRepo) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, nil
	}
	return r.first(ctx, "refresh_token = ?", refreshToken)
}

// UpdateSessionTokens rotates a user's tokens and restarts its TTL. The profile
// is kept. A missing user is not an error.
func (r *gormSessionRepo) UpdateSessionTokens(ctx context.Context, userID int, accessToken, refreshToken string, ttl time.Duration) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	res := r.db.WithContext(ctx).Model(&Session{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_at":    r.nowUTC().Add(effectiveTTL(ttl)),
		})
	if res.Error != nil {
		log.Error().Err(res.Error).Int("user_id", userID).Msg("Failed to update session tokens")
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Debug().Int("user_id", userID).Msg("No session to update")
	}
	return nil
}

func (r *gormSessionRepo) DeleteSession(ctx context.Context, userID int) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&Session{}).Error
}

func (r *gormSessionRepo) DeleteAllSessions(ctx context.Context) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Session{}).Error
}

// CleanupExpiredTokens removes every expired session and reports how many were removed.
func (r *gormSessionRepo) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("repository not initialized")
	}
	res := r.db.WithContext(ctx).Where("expires_at <= ?", r.nowUTC()).Delete(&Session{})
	if res.Error != nil {
		log.Error().Err(res.Error).Msg("Failed to clean up expired sessions")
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("removed", res.RowsAffected).Msg("Cleaned up expired sessions")
	}
	return res.RowsAffected, nil
}

// ListSessions returns the active sessions, soonest expiry first.
func (r *gormSessionRepo) ListSessions(ctx context.Context) ([]Session, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("expires_at > ?", r.nowUTC()).
		Order("expires_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
