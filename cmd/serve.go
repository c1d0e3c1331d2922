package cmd

import (
	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/db"
	"github.com/habedi/dogs/pkg/ttlcache"
	"github.com/habedi/dogs/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP proxy until the process is interrupted.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dogs HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if lvl, err := cfg.LogLevel(); err == nil && zerolog.GlobalLevel() != zerolog.DebugLevel {
				zerolog.SetGlobalLevel(lvl)
			}

			if err := openDatabase(cfg); err != nil {
				return err
			}
			defer closeDatabase()

			ctx := cmd.Context()
			sessions := db.NewSessionRepository(db.GetDB())

			auth := server.NewAuthService(
				client.NewIdentityClient(cfg.Identity.BaseURL, cfg.Identity.Timeout),
				sessions,
				ttlcache.New[client.UserProfile](cfg.Cache.Enabled()),
				cfg.Session.TTL,
				cfg.Cache.ProfileTTL,
			)
			catalogue := server.NewCatalogService(
				client.NewCatalogClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout),
				cfg.Cache.Enabled(),
				cfg.Cache.BreedsTTL,
				cfg.Cache.ImagesTTL,
			)
			favourites := server.NewFavouritesService(db.NewFavouriteRepository(db.GetDB()))

			if removed := server.Sweep(ctx, sessions); removed > 0 {
				log.Info().Int64("removed", removed).Msg("Removed expired sessions at startup")
			}
			go server.RunSweeper(ctx, sessions, cfg.Session.SweepInterval, auth, catalogue)

			handler := server.NewRouter(server.Services{Auth: auth, Catalog: catalogue, Favourites: favourites})
			srv := server.New(cfg.HTTP.Addr(), handler, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
			cmd.Printf("Listening on %s\n", cfg.HTTP.Addr())
			return srv.Run(ctx)
		},
	}
}
