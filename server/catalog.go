package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/pkg/apierr"
	"github.com/habedi/dogs/pkg/ttlcache"
	"github.com/habedi/dogs/pkg/validation"
	"github.com/rs/zerolog/log"
)

// Catalog is the upstream dog catalogue. client.CatalogClient satisfies it.
type Catalog interface {
	Breeds(ctx context.Context) ([]string, error)
	BreedImages(ctx context.Context, breed string, count int) ([]string, error)
}

const breedsCacheKey = "breeds:list:v1"

func imagesCacheKey(breed string, count int) string {
	return fmt.Sprintf("breed-images:%s:count:%d", breed, count)
}

// CatalogService is a read-through cache over the catalogue.
type CatalogService struct {
	upstream  Catalog
	breeds    *ttlcache.Cache[[]string]
	images    *ttlcache.Cache[[]string]
	breedsTTL time.Duration
	imagesTTL time.Duration
}

func NewCatalogService(upstream Catalog, enabled bool, breedsTTL, imagesTTL time.Duration) *CatalogService {
	return &CatalogService{
		upstream:  upstream,
		breeds:    ttlcache.New[[]string](enabled),
		images:    ttlcache.New[[]string](enabled),
		breedsTTL: breedsTTL,
		imagesTTL: imagesTTL,
	}
}

func (s *CatalogService) Breeds(ctx context.Context) (*client.BreedList, error) {
	names, ok := s.breeds.Get(breedsCacheKey)
	if !ok {
		var err error
		names, err = s.upstream.Breeds(ctx)
		if err != nil {
			return nil, err
		}
		s.breeds.Set(breedsCacheKey, names, s.breedsTTL)
		log.Debug().Int("breeds", len(names)).Msg("Breed list fetched from catalogue")
	}

	list := &client.BreedList{Breeds: make([]client.Breed, 0, len(names))}
	for _, n := range names {
		list.Breeds = append(list.Breeds, client.Breed{Name: n})
	}
	return list, nil
}

func (s *CatalogService) BreedImages(ctx context.Context, breed string, count int) (*client.BreedImages, error) {
	if err := validation.ValidateBreed(breed); err != nil {
		return nil, apierr.New(apierr.Validation, err.Error(), err)
	}
	if err := validation.ValidateImageCount(count); err != nil {
		return nil, apierr.New(apierr.Validation, err.Error(), err)
	}

	key := imagesCacheKey(breed, count)
	urls, ok := s.images.Get(key)
	if !ok {
		var err error
		urls, err = s.upstream.BreedImages(ctx, breed, count)
		if err != nil {
			return nil, err
		}
		s.images.Set(key, urls, s.imagesTTL)
	}
	return &client.BreedImages{Breed: breed, Images: urls}, nil
}

// Sweep drops expired catalogue entries and reports how many were removed.
func (s *CatalogService) Sweep() int {
	return s.breeds.Sweep() + s.images.Sweep()
}

func (s *CatalogService) handleBreeds(w http.ResponseWriter, r *http.Request) {
	list, err := s.Breeds(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *CatalogService) handleBreedImages(w http.ResponseWriter, r *http.Request) {
	count := validation.DefaultImageCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, apierr.New(apierr.Validation, "count must be an integer", err))
			return
		}
		count = n
	}

	images, err := s.BreedImages(r.Context(), chi.URLParam(r, "breed"), count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}
