package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/tasks"
)

var tasksLogsLevel string

var tasksLogsCmd = &cobra.Command{
	Use:   "logs NAME",
	Short: "Show what the last run of a task logged",
	Args:  cobra.ExactArgs(1),
	Example: `  feedgate tasks logs ratelimit-janitor
  feedgate tasks logs ratelimit-recheck --level warn`,
	RunE: func(cmd *cobra.Command, args []string) error {
		minLevel, err := zerolog.ParseLevel(tasksLogsLevel)
		if err != nil {
			return fmt.Errorf("invalid --level: %w", err)
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}
		entries, correlation, err := cli.GetTaskLogs(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to retrieve task logs")
		}

		printTaskLogs(entries, minLevel)
		return nil
	},
}

func printTaskLogs(entries []tasks.LogEntry, minLevel zerolog.Level) {
	shown := 0
	for _, entry := range entries {
		level, err := zerolog.ParseLevel(entry.Level)
		if err == nil && level < minLevel {
			continue
		}
		fmt.Printf("%s %s %s\n", faint(entry.Time.Format("15:04:05.000")), levelTag(level), entry.Message)
		shown++
	}
	if shown == 0 {
		fmt.Println(faint("(no log lines)"))
	}
}

func levelTag(level zerolog.Level) string {
	switch level {
	case zerolog.DebugLevel:
		return faint("DBG")
	case zerolog.InfoLevel:
		return color.GreenString("INF")
	case zerolog.WarnLevel:
		return color.YellowString("WRN")
	case zerolog.ErrorLevel:
		return color.RedString("ERR")
	default:
		return "???"
	}
}

func init() {
	tasksCmd.AddCommand(tasksLogsCmd)
	tasksLogsCmd.Flags().StringVar(&tasksLogsLevel, "level", "debug", "Minimum level to show")
}
