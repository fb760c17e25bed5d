package cmd

import (
	"github.com/spf13/cobra"
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check the audit log and view active tokens",
	Long: `View audit entries and active session tokens on the server.
Requires an authenticated session (feedgate login) with admin.read.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
