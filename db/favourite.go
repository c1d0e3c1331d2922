package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Favourite is a saved dog image, owned by one user.
type Favourite struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    int       `gorm:"not null;uniqueIndex:idx_favourites_owner_image,priority:1" json:"-"`
	Breed     string    `gorm:"not null;uniqueIndex:idx_favourites_owner_image,priority:2" json:"breed"`
	ImageURL  string    `gorm:"column:image_url;not null;uniqueIndex:idx_favourites_owner_image,priority:3" json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// FavouriteRepository defines decoupled operations for favourites persistence.
// Every operation is scoped to one user.
type FavouriteRepository interface {
	ListByUser(ctx context.Context, userID int) ([]Favourite, error)
	Exists(ctx context.Context, userID int, breed, imageURL string) (bool, error)
	Create(ctx context.Context, fav *Favourite) error
	DeleteByUserAndID(ctx context.Context, userID int, id string) (bool, error)
}

type gormFavouriteRepo struct{ db *gorm.DB }

// NewFavouriteRepository creates a FavouriteRepository. Accepts *gorm.DB to avoid global access.
func NewFavouriteRepository(db *gorm.DB) FavouriteRepository { return &gormFavouriteRepo{db: db} }

// ListByUser returns the user's favourites, newest first.
func (r *gormFavouriteRepo) ListByUser(ctx context.Context, userID int) ([]Favourite, error) {
	if r.db == nil {
		return nil, fmt.Errorf("repository not initialized")
	}
	favs := []Favourite{}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&favs).Error; err != nil {
		return nil, err
	}
	return favs, nil
}

func (r *gormFavouriteRepo) Exists(ctx context.Context, userID int, breed, imageURL string) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&Favourite{}).
		Where("user_id = ? AND breed = ? AND image_url = ?", userID, breed, imageURL).
		Count(&count).Error
	return count > 0, err
}

func (r *gormFavouriteRepo) Create(ctx context.Context, fav *Favourite) error {
	if r.db == nil {
		return fmt.Errorf("repository not initialized")
	}
	if err := r.db.WithContext(ctx).Create(fav).Error; err != nil {
		log.Error().Err(err).Int("user_id", fav.UserID).Msg("Failed to create favourite")
		return err
	}
	return nil
}

// DeleteByUserAndID reports whether a favourite was removed.
func (r *gormFavouriteRepo) DeleteByUserAndID(ctx context.Context, userID int, id string) (bool, error) {
	if r.db == nil {
		return false, fmt.Errorf("repository not initialized")
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&Favourite{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		log.Warn().Int("user_id", userID).Str("id", id).Msg("Attempted to delete non-existent favourite")
	}
	return res.RowsAffected > 0, nil
}
