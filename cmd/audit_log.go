package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/pkg/client"
)

// auditLogCmd represents the audit command
var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	Long: `Shows the most recent audit entries, oldest first.
Only servers using the memory auditor can serve them back.`,
	Example: `  feedgate audit log -n 10
  feedgate audit log --action identity.create`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetUint("limit")
		if err != nil {
			return err
		}
		action, _ := cmd.Flags().GetString("action")

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:  limit,
			Action: action,
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}

		log.Debug().Msgf("Retrieved %d audit entries", len(audits))
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(audits)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "Action", "Actor", "Subject", "Granted", "Error",
		})

		for _, e := range audits {
			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.Action,
				truncate(e.Actor, 35),
				truncate(e.Subject, 35),
				yesNo(e.Granted),
				e.Error,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().UintP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().Bool("json", false, "Print the entries as JSON, metadata included")
	auditLogCmd.Flags().String("action", "", "Only show entries with this action, e.g. auth.login")
}
