package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/core"
	"github.com/8b-is/feedgate/internal/service"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage registered agents",
	Long: `List, create and delete agents on a running server.
Requires an authenticated admin session (feedgate login).`,
}

var agentsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		agents, correlation, err := cli.ListAgents(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to list agents")
		}
		if agentsListJSON {
			return printJSON(agents)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Name", "Permissions", "Rate Limit", "Key"})
		for _, a := range agents {
			t.AppendRow(table.Row{
				bold(a.AgentID),
				a.Name,
				joinPermissions(a.Permissions),
				fmt.Sprintf("%d/min", a.RateLimit),
				faint(a.SecretPreview + "..."),
			})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var (
	agentsListJSON    bool
	createPermissions []string
	createRateLimit   int
)

var agentsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an agent and print its secret",
	Args:  cobra.ExactArgs(1),
	Example: `  feedgate agents create "Build Bot"
  feedgate agents create Reporter --permission feedback.submit --rate-limit 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		created, correlation, err := cli.CreateAgent(cmd.Context(), service.CreateIdentityRequest{
			Name:        args[0],
			Permissions: core.Permissions(createPermissions),
			RateLimit:   createRateLimit,
		})
		if err != nil {
			return logError(err, correlation, "failed to create agent")
		}

		logSuccess("created agent %s", bold(created.AgentID))
		fmt.Printf("  %s:          %s\n", faint("ID"), created.AgentID)
		fmt.Printf("  %s:      %s\n", faint("Secret"), color.YellowString(created.Secret))
		fmt.Printf("  %s: %s\n", faint("Permissions"), joinPermissions(created.Permissions))
		fmt.Printf("  %s:  %d/min\n", faint("Rate limit"), created.RateLimit)
		log.Warn().Msg("the secret is not shown again, store it now")
		return nil
	},
}

var agentsDeleteCmd = &cobra.Command{
	Use:     "delete ID",
	Aliases: []string{"rm"},
	Short:   "Delete an agent",
	Long:    `Deletes the agent. Tokens already issued to it remain valid until they expire.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		if correlation, err := cli.DeleteAgent(cmd.Context(), args[0]); err != nil {
			return logError(err, correlation, "failed to delete agent")
		}
		logSuccess("deleted agent %s", bold(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(agentsCmd)
	agentsCmd.AddCommand(agentsListCmd, agentsCreateCmd, agentsDeleteCmd)

	agentsListCmd.Flags().BoolVar(&agentsListJSON, "json", false, "Print the agents as JSON")
	agentsCreateCmd.Flags().StringSliceVar(&createPermissions, "permission", nil,
		"Capability to grant, repeatable (default feedback.submit, feedback.read)")
	agentsCreateCmd.Flags().IntVar(&createRateLimit, "rate-limit", 0, "Requests per minute (default 60)")
}
