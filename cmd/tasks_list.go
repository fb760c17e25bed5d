package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/tasks"
)

var tasksListJSON bool

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List background tasks and their last result",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		list, correlation, err := cli.ListTasks(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to list tasks")
		}
		if tasksListJSON {
			return printJSON(list)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "State", "Every", "Runs", "Last Run", "Next Run", "Result"})
		now := time.Now()
		for _, st := range list {
			t.AppendRow(taskRow(st, now))
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func taskRow(st tasks.TaskStatus, now time.Time) table.Row {
	state := faint("idle")
	if st.Running {
		state = color.BlueString("running")
	}

	every, next := "on demand", "-"
	if st.Interval != "" {
		every = st.Interval
		next = relative(st.NextRun, now)
	}

	runs := fmt.Sprint(st.Runs)
	if st.Failures > 0 {
		runs += color.RedString(" (%d failed)", st.Failures)
	}

	var result string
	switch {
	case st.Runs == 0:
		result = faint("-")
	case st.LastResult == "success":
		result = fmt.Sprintf("%s %s", greenCheck, faint(st.LastDuration))
	default:
		result = redCross + " " + truncate(strings.TrimPrefix(st.LastResult, "failed: "), 50)
	}

	return table.Row{bold(st.Name), state, every, runs, relative(st.LastRun, now), next, result}
}

func init() {
	tasksCmd.AddCommand(tasksListCmd)
	tasksListCmd.Flags().BoolVar(&tasksListJSON, "json", false, "Print the raw task status as JSON")
}
