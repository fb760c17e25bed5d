package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/core"
)

var (
	tokensSubject string
	tokensJSON    bool
)

var auditTokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List session tokens that have not expired",
	Long: `Lists the unexpired session tokens the server has issued, newest first.
Only metadata and a fingerprint are kept; the tokens themselves are never stored.
Tokens issued before the last server restart are not listed.

Requires a session with admin.read.`,
	Example: `  feedgate audit tokens
  feedgate audit tokens --subject agent_claude_001`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		tokens, correlation, err := cli.ListActiveTokens(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to fetch active tokens")
		}
		tokens = filterTokens(tokens, tokensSubject)
		if tokensJSON {
			return printJSON(tokens)
		}
		if len(tokens) == 0 {
			log.Info().Msg("No active tokens found")
			return nil
		}

		now := time.Now()
		perSubject := make(map[string]int)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Subject", "Name", "Permissions", "Issued", "Expires", "Fingerprint"})
		for _, tok := range tokens {
			perSubject[tok.Subject]++
			t.AppendRow(table.Row{
				bold(tok.Subject),
				truncate(tok.DisplayName, 30),
				joinPermissions(tok.Permissions),
				relative(tok.IssuedAt, now),
				relative(tok.ExpiresAt, now),
				faint(tok.Fingerprint),
			})
		}
		t.AppendFooter(table.Row{"", "", "", "", "Subjects", len(perSubject)})
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func filterTokens(tokens []core.TokenMetadata, subject string) []core.TokenMetadata {
	if subject == "" {
		return tokens
	}
	var out []core.TokenMetadata
	for _, tok := range tokens {
		if strings.EqualFold(tok.Subject, subject) {
			out = append(out, tok)
		}
	}
	return out
}

func init() {
	auditCmd.AddCommand(auditTokensCmd)
	auditTokensCmd.Flags().StringVar(&tokensSubject, "subject", "", "Only show tokens of this subject")
	auditTokensCmd.Flags().BoolVar(&tokensJSON, "json", false, "Print the token records as JSON")
}
