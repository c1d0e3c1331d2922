package cmd

import (
	"context"
	"os"

	"github.com/habedi/dogs/config"
	"github.com/habedi/dogs/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

func Execute(ctx context.Context) {
	rootCmd := createRootCmd()
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")
	// cmd.Print* falls back to stderr without this.
	rootCmd.SetOut(os.Stdout)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dogs",
		Short:         "A session-aware proxy for the dog catalogue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")

	rootCmd.AddCommand(
		serveCmd(),
		loginCmd(),
		logoutCmd(),
		tokenCmd(),
		whoamiCmd(),
		sessionsCmd(),
		catalogueCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openDatabase points the shared connection at the configured file.
func openDatabase(cfg *config.Config) error {
	if cfg.DB.Path != "" {
		db.Path = cfg.DB.Path
	}
	if err := db.InitDB(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		return err
	}
	return nil
}

func closeDatabase() {
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
	}
}
