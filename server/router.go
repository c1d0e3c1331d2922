package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/habedi/dogs/pkg/apierr"
)

// Services bundles what the router dispatches to.
type Services struct {
	Auth       *AuthService
	Catalog    *CatalogService
	Favourites *FavouritesService
}

func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(), RequestID(), Logging())
	r.Use(middleware.Heartbeat("/healthz"))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, apierr.New(apierr.NotFound, "Route not found", nil))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: APIError{
			Code:      "method_not_allowed",
			Message:   "Method not allowed",
			RequestID: RequestIDFrom(req.Context()),
		}})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.Auth.handleLogin)
		r.Post("/refresh", s.Auth.handleRefresh)
		r.Group(func(r chi.Router) {
			r.Use(RequireBearer())
			r.With(RequireUser(s.Auth)).Get("/me", s.Auth.handleMe)
			r.Post("/logout", s.Auth.handleLogout)
		})
	})

	r.Get("/breeds", s.Catalog.handleBreeds)
	r.Get("/breeds/{breed}/images", s.Catalog.handleBreedImages)

	r.Route("/favourites", func(r chi.Router) {
		r.Use(RequireBearer(), RequireUser(s.Auth))
		r.Get("/", s.Favourites.handleList)
		r.Post("/", s.Favourites.handleAdd)
		r.Delete("/{id}", s.Favourites.handleDelete)
	})

	return r
}
