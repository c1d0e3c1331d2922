package cmd

import (
	"fmt"
	"time"

	"github.com/habedi/dogs/db"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// sessionsCmd operates on the server's session table directly.
func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain stored server sessions",
	}
	cmd.AddCommand(
		sessionsListCmd(),
		sessionsSweepCmd(),
		sessionsClearCmd(),
	)
	return cmd
}

// withSessions opens the configured database for the duration of fn.
func withSessions(fn func(repo db.SessionRepository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := openDatabase(cfg); err != nil {
		return err
	}
	defer closeDatabase()
	return fn(db.NewSessionRepository(db.GetDB()))
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(func(repo db.SessionRepository) error {
				sessions, err := repo.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					cmd.Println("No active sessions.")
					return nil
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"User ID", "Username", "Expires At", "Remaining"})
				table.SetAlignment(tablewriter.ALIGN_LEFT)
				table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
				table.SetAutoWrapText(false)
				table.SetRowLine(false)

				now := time.Now()
				for _, s := range sessions {
					username := "?"
					if p, err := s.Profile(); err == nil {
						username = p.Username
					}
					table.Append([]string{
						fmt.Sprintf("%d", s.UserID),
						username,
						s.ExpiresAt.Local().Format(time.RFC3339),
						s.ExpiresAt.Sub(now).Round(time.Second).String(),
					})
				}
				table.Render()
				return nil
			})
		},
	}
}

func sessionsSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(func(repo db.SessionRepository) error {
				removed, err := repo.CleanupExpiredTokens(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Printf("Removed %d expired session(s).\n", removed)
				return nil
			})
		},
	}
}

func sessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSessions(func(repo db.SessionRepository) error {
				if err := repo.DeleteAllSessions(cmd.Context()); err != nil {
					return err
				}
				log.Info().Msg("All sessions removed")
				cmd.Println("All sessions removed.")
				return nil
			})
		},
	}
}
