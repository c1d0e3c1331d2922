package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/habedi/dogs/auth"
	"github.com/habedi/dogs/client"
	"github.com/habedi/dogs/config"
	"github.com/habedi/dogs/pkg/apierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// clientSession is the CLI's view of a login held against a running server.
type clientSession struct {
	identity *client.IdentityClient
	tokens   *auth.Orchestrator
}

// openSession restores the stored login. The caller must Close it.
func openSession(ctx context.Context, cfg *config.Config) *clientSession {
	identity := client.NewIdentityClient(cfg.Client.ServerURL, cfg.Client.Timeout)
	tokens := auth.NewOrchestrator(identity, auth.NewFileStorage(cfg.Client.StateFile()),
		auth.WithLeeway(cfg.Client.Leeway))
	tokens.Restore(ctx)
	return &clientSession{identity: identity, tokens: tokens}
}

func (s *clientSession) Close() { s.tokens.Close() }

// requireToken returns a valid access token or an error explaining why there is none.
func (s *clientSession) requireToken(ctx context.Context) (string, error) {
	token := s.tokens.GetAccessToken(ctx)
	if token != "" {
		return token, nil
	}
	if err := s.tokens.Err(); err != nil {
		return "", err
	}
	return "", apierr.New(apierr.Unauthorized, "Not logged in. Run 'dogs login' first.", nil)
}

func loginCmd() *cobra.Command {
	var username string
	var expiresInMins int

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in through the dogs server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				username = promptForInput(cmd, in, "Username: ")
			}
			password := promptForPassword(cmd, in, "Password: ")
			if !validateCredentials(username, password) {
				return fmt.Errorf("username and password cannot be empty")
			}

			s := openSession(cmd.Context(), cfg)
			defer s.Close()

			resp, err := s.tokens.Login(cmd.Context(), client.LoginRequest{
				Username:      username,
				Password:      password,
				ExpiresInMins: expiresInMins,
			})
			if err != nil {
				return err
			}
			cmd.Printf("Logged in as %s.\n", resp.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username; prompted for when omitted")
	cmd.Flags().IntVar(&expiresInMins, "expires-in", 0, "Requested access token lifetime in minutes")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s := openSession(cmd.Context(), cfg)
			defer s.Close()

			if token := s.tokens.GetAccessToken(cmd.Context()); token != "" {
				if err := s.identity.Logout(cmd.Context(), token); err != nil {
					log.Warn().Err(err).Msg("Server-side logout failed; clearing local session anyway")
				}
			}
			s.tokens.Logout()
			cmd.Println("Logged out.")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s := openSession(cmd.Context(), cfg)
			defer s.Close()

			token, err := s.requireToken(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s := openSession(cmd.Context(), cfg)
			defer s.Close()

			token, err := s.requireToken(cmd.Context())
			if err != nil {
				return err
			}
			user, err := s.identity.CurrentUser(cmd.Context(), token)
			if err != nil {
				return err
			}
			cmd.Printf("ID: %d\n", user.ID)
			cmd.Printf("Username: %s\n", user.Username)
			if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
				cmd.Printf("Name: %s\n", name)
			}
			if user.Email != "" {
				cmd.Printf("Email: %s\n", user.Email)
			}
			return nil
		},
	}
}

// promptForInput prompts the user for input and returns the trimmed string.
func promptForInput(cmd *cobra.Command, in *bufio.Reader, prompt string) string {
	cmd.Print(prompt)
	input, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		log.Error().Err(err).Msg("Failed to read input")
		return ""
	}
	return strings.TrimSpace(input)
}

// promptForPassword reads without echo from a terminal, and a plain line otherwise.
func promptForPassword(cmd *cobra.Command, in *bufio.Reader, prompt string) string {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return promptForInput(cmd, in, prompt)
	}
	cmd.Print(prompt)
	password, err := term.ReadPassword(int(f.Fd()))
	cmd.Println()
	if err != nil {
		log.Error().Err(err).Msg("Failed to read password")
		return ""
	}
	return strings.TrimSpace(string(password))
}

func validateCredentials(username, password string) bool {
	return username != "" && password != ""
}
