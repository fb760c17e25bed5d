package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/tasks"
	"github.com/8b-is/feedgate/pkg/client"
)

var (
	triggerWait    bool
	triggerTimeout time.Duration
)

var tasksTriggerCmd = &cobra.Command{
	Use:   "trigger NAME",
	Short: "Run a background task now",
	Args:  cobra.ExactArgs(1),
	Example: `  feedgate tasks trigger tokens-prune
  feedgate tasks trigger ratelimit-recheck --wait`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		before, err := taskStatus(cmd.Context(), cli, name)
		if err != nil {
			return err
		}

		if correlation, err := cli.TriggerTask(cmd.Context(), name); err != nil {
			return logError(err, correlation, "failed to trigger task")
		}
		logSuccess("triggered %s", bold(name))

		if !triggerWait {
			log.Info().Msgf("Run '%s' to see its output.", color.CyanString("feedgate tasks logs "+name))
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), triggerTimeout)
		defer cancel()
		after, err := waitForRun(ctx, cli, name, before.Runs)
		if err != nil {
			return err
		}

		entries, correlation, err := cli.GetTaskLogs(cmd.Context(), name)
		if err != nil {
			return logError(err, correlation, "failed to retrieve task logs")
		}
		printTaskLogs(entries, zerolog.DebugLevel)

		if after.LastResult != "success" {
			log.Error().Msgf("%s %s %s", redCross, name, after.LastResult)
			return BeQuietError{}
		}
		logSuccess("%s finished in %s", name, after.LastDuration)
		return nil
	},
}

func taskStatus(ctx context.Context, cli *client.Client, name string) (tasks.TaskStatus, error) {
	list, _, err := cli.ListTasks(ctx)
	if err != nil {
		return tasks.TaskStatus{}, fmt.Errorf("listing tasks: %w", err)
	}
	for _, st := range list {
		if st.Name == name {
			return st, nil
		}
	}
	return tasks.TaskStatus{}, fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, name)
}

// waitForRun polls until the task has completed more than runs runs.
func waitForRun(ctx context.Context, cli *client.Client, name string, runs int) (tasks.TaskStatus, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		st, err := taskStatus(ctx, cli, name)
		if err != nil {
			return st, err
		}
		if !st.Running && st.Runs > runs {
			return st, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return st, fmt.Errorf("task %s did not finish within %s", name, triggerTimeout)
			}
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	tasksCmd.AddCommand(tasksTriggerCmd)
	tasksTriggerCmd.Flags().BoolVarP(&triggerWait, "wait", "w", false, "Wait for the run to finish and print its output")
	tasksTriggerCmd.Flags().DurationVar(&triggerTimeout, "timeout", 2*time.Minute, "How long --wait waits")
}
