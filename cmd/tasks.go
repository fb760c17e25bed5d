package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and trigger background tasks",
	Long: `View and trigger the maintenance tasks of a running server, such as pruning
expired rate limit windows. Requires an authenticated admin session (feedgate login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
