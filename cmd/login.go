package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/api"
	"github.com/8b-is/feedgate/internal/cliconfig"
	"github.com/8b-is/feedgate/pkg/client"
)

const EnvPassword = "FEEDGATE_PASSWORD"

var (
	loginUsername string
	loginPassword string
	loginAgentID  string
	loginSecret   string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a feedgate server",
	Long: `Exchanges admin credentials (--username) or an agent key pair (--agent-id, --secret)
for a session token. The token is saved locally and used by the other remote commands.`,
	Example: `  feedgate login --server http://localhost:8080 --username root
  feedgate login --server http://localhost:8080 --agent-id agent_claude_001 --secret sk_...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := f.ServerAddr()
		if err != nil {
			return err
		}
		cli, err := client.New(server)
		if err != nil {
			return err
		}

		var (
			resp        *api.TokenResponse
			correlation string
		)
		switch {
		case loginAgentID != "":
			if loginSecret == "" {
				return fmt.Errorf("--secret is required with --agent-id")
			}
			log.Info().Msgf("Exchanging key of %s...", bold(loginAgentID))
			resp, correlation, err = cli.ExchangeToken(cmd.Context(), loginAgentID, loginSecret)
		case loginUsername != "":
			password := loginPassword
			if password == "" {
				password = os.Getenv(EnvPassword)
			}
			if password == "" {
				return fmt.Errorf("password required (use --password or set %s)", EnvPassword)
			}
			log.Info().Msgf("Logging in as %s...", bold(loginUsername))
			resp, correlation, err = cli.Login(cmd.Context(), loginUsername, password)
		default:
			return fmt.Errorf("either --username or --agent-id is required")
		}
		if err != nil {
			return logError(err, correlation, "login failed")
		}

		cfg, err := cliconfig.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		subject := loginUsername
		if loginAgentID != "" {
			subject = loginAgentID
		}
		cred := &cliconfig.Credential{
			Token:     resp.AccessToken,
			Subject:   subject,
			ExpiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		}
		if err := cfg.SetCredential(server, cred); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "login succeeded but could not save credentials")
		}

		logSuccess("saved credentials for %s (valid until %s)", bold(server), cred.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Admin username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Admin password (prefer "+EnvPassword+")")
	loginCmd.Flags().StringVar(&loginAgentID, "agent-id", "", "Agent id for an agent key exchange")
	loginCmd.Flags().StringVar(&loginSecret, "secret", "", "Agent secret for an agent key exchange")
	loginCmd.MarkFlagsMutuallyExclusive("username", "agent-id")
}
