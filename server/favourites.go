package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/habedi/dogs/db"
	"github.com/habedi/dogs/pkg/apierr"
	"github.com/habedi/dogs/pkg/validation"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type AddFavouriteRequest struct {
	Breed    string `json:"breed"`
	ImageURL string `json:"imageUrl"`
}

// FavouritesService manages each user's saved images.
type FavouritesService struct {
	repo  db.FavouriteRepository
	now   func() time.Time
	newID func() string
}

func NewFavouritesService(repo db.FavouriteRepository) *FavouritesService {
	return &FavouritesService{repo: repo, now: time.Now, newID: uuid.NewString}
}

func (s *FavouritesService) List(ctx context.Context, userID int) ([]db.Favourite, error) {
	favs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apierr.New(apierr.Internal, "Failed to load favourites", err)
	}
	return favs, nil
}

func (s *FavouritesService) Add(ctx context.Context, userID int, req AddFavouriteRequest) (*db.Favourite, error) {
	if err := validation.ValidateBreed(req.Breed); err != nil {
		return nil, apierr.New(apierr.Validation, err.Error(), err)
	}
	if err := validation.ValidateImageURL(req.ImageURL); err != nil {
		return nil, apierr.New(apierr.Validation, err.Error(), err)
	}

	exists, err := s.repo.Exists(ctx, userID, req.Breed, req.ImageURL)
	if err != nil {
		return nil, apierr.New(apierr.Internal, "Failed to check favourites", err)
	}
	if exists {
		return nil, apierr.New(apierr.Conflict, "This image is already in your favourites", nil)
	}

	fav := &db.Favourite{
		ID:        s.newID(),
		UserID:    userID,
		Breed:     req.Breed,
		ImageURL:  req.ImageURL,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, fav); err != nil {
		// A concurrent add of the same image can slip past Exists.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.New(apierr.Conflict, "This image is already in your favourites", err)
		}
		return nil, apierr.New(apierr.Internal, "Failed to save favourite", err)
	}
	log.Info().Int("user_id", userID).Str("breed", req.Breed).Msg("Favourite added")
	return fav, nil
}

func (s *FavouritesService) Delete(ctx context.Context, userID int, id string) error {
	removed, err := s.repo.DeleteByUserAndID(ctx, userID, id)
	if err != nil {
		return apierr.New(apierr.Internal, "Failed to delete favourite", err)
	}
	if !removed {
		return apierr.New(apierr.NotFound, "Favourite not found", nil)
	}
	return nil
}

func (s *FavouritesService) handleList(w http.ResponseWriter, r *http.Request) {
	favs, err := s.List(r.Context(), UserFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favourites": favs})
}

func (s *FavouritesService) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddFavouriteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fav, err := s.Add(r.Context(), UserFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"favourite": fav})
}

func (s *FavouritesService) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(r.Context(), UserFrom(r.Context()).ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
