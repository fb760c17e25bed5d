package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity and quota of the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		who, correlation, err := cli.Verify(cmd.Context())
		if err != nil {
			return logError(err, correlation, "session is not valid")
		}
		quota, correlation, err := cli.Quota(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to read quota")
		}

		fmt.Println(bold("\n── Session ──"))
		fmt.Printf("  %s:     %s (%s)\n", faint("Subject"), who.Subject, who.Kind)
		fmt.Printf("  %s:        %s\n", faint("Name"), who.Name)
		fmt.Printf("  %s: %s\n", faint("Permissions"), joinPermissions(who.Permissions))
		if who.ExpiresAt != nil {
			fmt.Printf("  %s:     %s (%s)\n", faint("Expires"), who.ExpiresAt.Format(time.RFC3339), relative(*who.ExpiresAt, time.Now()))
		}
		fmt.Printf("  %s:       %d of %d left, resets in %ds\n", faint("Quota"), quota.Remaining, quota.Limit, quota.ResetIn)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
