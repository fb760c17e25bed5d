package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads the configuration the same way 'serve' does, including .env loading and
${VAR} expansion, and reports the first problem found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return logError(err, "", "configuration is invalid")
		}

		logSuccess("configuration is valid")
		fmt.Printf("  %s:  %s\n", faint("Listen"), cfg.Server.Addr)
		fmt.Printf("  %s:   %s (timeout %s)\n", faint("Store"), cfg.RateLimit.Store.Type, cfg.RateLimit.Store.Timeout)
		fmt.Printf("  %s:  %d\n", faint("Agents"), len(cfg.Agents))
		fmt.Printf("  %s:  %d\n", faint("Admins"), len(cfg.Admins))
		if cfg.Auth.SigningKey == "" {
			log.Warn().Msg("auth.signing_key is empty; a random key will be generated on every start")
		}
		for _, a := range cfg.Agents {
			if a.Secret == "" {
				log.Warn().Str("agent", a.ID).Msg("agent has no secret; a random one will be generated on start")
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	f.bindConfigFlag(configValidateCmd.Flags())
}
